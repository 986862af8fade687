package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/usecase"
	"github.com/spf13/afero"
)

func exportURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("/servlet/servlet.OrgExport?fileName=WE_%d.ZIP&id=X", i+1)
	}
	return urls
}

type downloaderFactory func(client interfaces.OrgClient, fs afero.Fs) interfaces.Downloader

var downloaders = map[string]downloaderFactory{
	"serial": func(client interfaces.OrgClient, fs afero.Fs) interfaces.Downloader {
		return usecase.NewSerialDownloader(client, fs)
	},
	"concurrent": func(client interfaces.OrgClient, fs afero.Fs) interfaces.Downloader {
		return usecase.NewConcurrentDownloader(client, fs, usecase.WithConcurrency(2))
	},
}

func TestDownloader_Success(t *testing.T) {
	for name, newDownloader := range downloaders {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			client := &orgClientMock{
				GetFunc: func(ctx context.Context, ref string) (*http.Response, error) {
					return newResponse(http.StatusOK, []byte("content of "+ref)), nil
				},
			}

			urls := exportURLs(3)
			dir := "/work/run-1"
			result, err := newDownloader(client, fs).Download(context.Background(), urls, dir)
			gt.NoError(t, err)
			gt.True(t, result.Success)
			gt.Array(t, result.Paths).Equal([]string{
				filepath.Join(dir, "export0.zip"),
				filepath.Join(dir, "export1.zip"),
				filepath.Join(dir, "export2.zip"),
			})

			for i, path := range result.Paths {
				data, err := afero.ReadFile(fs, path)
				gt.NoError(t, err)
				gt.Value(t, string(data)).Equal("content of " + urls[i])
			}
		})
	}
}

func TestDownloader_EmptyInput(t *testing.T) {
	for name, newDownloader := range downloaders {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			client := &orgClientMock{}

			result, err := newDownloader(client, fs).Download(context.Background(), nil, "/work/empty")
			gt.NoError(t, err)
			gt.True(t, result.Success)
			gt.Array(t, result.Paths).Length(0)

			exists, err := afero.DirExists(fs, "/work/empty")
			gt.NoError(t, err)
			gt.True(t, exists)
		})
	}
}

func TestDownloader_Failure(t *testing.T) {
	for name, newDownloader := range downloaders {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			client := &orgClientMock{
				GetFunc: func(ctx context.Context, ref string) (*http.Response, error) {
					if strings.Contains(ref, "WE_2") {
						return newResponse(http.StatusInternalServerError, nil), nil
					}
					return newResponse(http.StatusOK, []byte("ok")), nil
				},
			}

			result, err := newDownloader(client, fs).Download(context.Background(), exportURLs(3), "/work/run-2")
			gt.NoError(t, err)
			gt.False(t, result.Success)
			gt.Array(t, result.Paths).Length(0)
		})
	}
}

func TestSerialDownloader_StopsAtFirstFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := &orgClientMock{
		GetFunc: func(ctx context.Context, ref string) (*http.Response, error) {
			if strings.Contains(ref, "WE_3") {
				return nil, errors.New("connection reset")
			}
			return newResponse(http.StatusOK, []byte("ok")), nil
		},
	}

	dir := "/work/run-3"
	result, err := usecase.NewSerialDownloader(client, fs).Download(context.Background(), exportURLs(5), dir)
	gt.NoError(t, err)
	gt.False(t, result.Success)

	// two successes and the failing request, nothing after it
	gt.Array(t, client.Calls()).Length(3)

	for _, name := range []string{"export0.zip", "export1.zip"} {
		exists, err := afero.Exists(fs, filepath.Join(dir, name))
		gt.NoError(t, err)
		gt.True(t, exists)
	}
	exists, err := afero.Exists(fs, filepath.Join(dir, "export2.zip"))
	gt.NoError(t, err)
	gt.False(t, exists)
}

func TestConcurrentDownloader_CancelsInFlight(t *testing.T) {
	fs := afero.NewMemMapFs()
	var cancelled atomic.Int32
	var started sync.WaitGroup
	started.Add(2)

	client := &orgClientMock{
		GetFunc: func(ctx context.Context, ref string) (*http.Response, error) {
			if strings.Contains(ref, "WE_1") {
				started.Wait()
				return newResponse(http.StatusForbidden, nil), nil
			}
			started.Done()
			<-ctx.Done()
			cancelled.Add(1)
			return nil, ctx.Err()
		},
	}

	downloader := usecase.NewConcurrentDownloader(client, fs, usecase.WithConcurrency(3))
	result, err := downloader.Download(context.Background(), exportURLs(3), "/work/run-4")
	gt.NoError(t, err)
	gt.False(t, result.Success)
	gt.Value(t, cancelled.Load()).Equal(int32(2))
}

func TestDownloader_InvalidState(t *testing.T) {
	for name, newDownloader := range downloaders {
		t.Run(name, func(t *testing.T) {
			client := &orgClientMock{
				GetFunc: func(ctx context.Context, ref string) (*http.Response, error) {
					return nil, goerr.Wrap(model.ErrInvalidState, "organisation ID is not configured")
				},
			}

			_, err := newDownloader(client, afero.NewMemMapFs()).Download(context.Background(), exportURLs(2), "/work/run-5")
			gt.True(t, errors.Is(err, model.ErrInvalidState))
		})
	}
}
