package types

// Version is overwritten at build time via -ldflags.
var Version = "dev"

// AppName is used as the service name in health reports and notification headers.
const AppName = "sfbackup"
