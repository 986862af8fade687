package usecase

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
)

// LinkGroup is the named capture group that must hold the export URL
const LinkGroup = "relurl"

// MaxExportPageSize bounds how much of the export page is read
const MaxExportPageSize = 8 << 20

// LinkExtractor scans the export status page for download links
type LinkExtractor struct {
	client  interfaces.OrgClient
	page    string
	pattern *regexp.Regexp
	group   int
}

var _ interfaces.LinkExtractor = (*LinkExtractor)(nil)

// NewLinkExtractor creates a LinkExtractor. pattern is matched case-insensitively and
// must define the named group "relurl".
func NewLinkExtractor(client interfaces.OrgClient, page, pattern string) (*LinkExtractor, error) {
	if page == "" {
		return nil, goerr.New("export page path is empty")
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile export link pattern", goerr.V("pattern", pattern))
	}

	group := re.SubexpIndex(LinkGroup)
	if group < 0 {
		return nil, goerr.New("export link pattern has no relurl group", goerr.V("pattern", pattern))
	}

	return &LinkExtractor{
		client:  client,
		page:    page,
		pattern: re,
		group:   group,
	}, nil
}

// Extract fetches the export page and returns every link in document order. A page that
// cannot be fetched yields Success=false; only an invalid state is returned as error.
func (x *LinkExtractor) Extract(ctx context.Context) (*model.ExtractionResult, error) {
	logger := logging.From(ctx)

	resp, err := x.client.Get(ctx, x.page)
	if err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			return nil, err
		}
		logger.Error("Failed to fetch export page", "error", err, "page", x.page)
		return &model.ExtractionResult{Success: false}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("Export page returned unexpected status",
			"status", resp.StatusCode,
			"page", x.page,
		)
		return &model.ExtractionResult{Success: false}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxExportPageSize+1))
	if err != nil {
		logger.Error("Failed to read export page", "error", err, "page", x.page)
		return &model.ExtractionResult{Success: false}, nil
	}
	if len(body) > MaxExportPageSize {
		logger.Error("Export page is too large", "page", x.page, "limit_bytes", MaxExportPageSize)
		return &model.ExtractionResult{Success: false}, nil
	}

	links := x.parse(body)
	logger.Debug("Scanned export page", "page", x.page, "size_bytes", len(body), "links", len(links))

	return &model.ExtractionResult{Success: true, Links: links}, nil
}

func (x *LinkExtractor) parse(body []byte) []string {
	matches := x.pattern.FindAllSubmatch(body, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, strings.ReplaceAll(string(m[x.group]), "&amp;", "&"))
	}
	return links
}
