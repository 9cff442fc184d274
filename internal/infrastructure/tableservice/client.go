// Package tableservice is the HTTP adapter for the remote table,
// query, and file-handle API the packaging tasks drive.
package tableservice

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/application/port"
	"github.com/corelab/udd-packager/internal/domain/udderrors"
)

// Client implements port.TableService over HTTP using resty, in the
// same request-building/error-mapping shape the pack's resty-based
// clients use for their own remote calls.
type Client struct {
	http    *resty.Client
	baseURL string
	logger  *zap.Logger
}

// New builds a Client against baseURL, authenticating every request
// with apiKey.
func New(baseURL, apiKey string, logger *zap.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Accept", "application/json")

	return &Client{http: http, baseURL: baseURL, logger: logger}
}

type tableResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetTable resolves a table id to its entity.
func (c *Client) GetTable(ctx context.Context, tableID string) (*port.TableEntity, error) {
	var out tableResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/repo/v1/entity/" + tableID)
	if err != nil {
		return nil, fmt.Errorf("get table %s: %w", tableID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get table %s: status %d", tableID, resp.StatusCode())
	}

	return &port.TableEntity{ID: out.ID, Name: out.Name}, nil
}

type exportRequest struct {
	SQL string `json:"sql"`
}

type asyncJobResponse struct {
	Token string `json:"token"`
}

// StartCSVExport submits an async CSV export job for query against
// tableID and returns its job token.
func (c *Client) StartCSVExport(ctx context.Context, query, tableID string) (string, error) {
	var out asyncJobResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(exportRequest{SQL: query}).
		SetResult(&out).
		Post("/repo/v1/entity/" + tableID + "/table/download/csv/async/start")
	if err != nil {
		return "", fmt.Errorf("start csv export on %s: %w", tableID, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("start csv export on %s: status %d", tableID, resp.StatusCode())
	}
	return out.Token, nil
}

type csvExportResponse struct {
	ResultsFileHandleID string `json:"resultsFileHandleId"`
}

// PollCSVExport checks an outstanding CSV export job.
func (c *Client) PollCSVExport(ctx context.Context, token, tableID string) (*port.CSVExportResult, error) {
	var out csvExportResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/repo/v1/entity/" + tableID + "/table/download/csv/async/get/" + token)
	if err != nil {
		return nil, fmt.Errorf("poll csv export on %s: %w", tableID, err)
	}

	switch resp.StatusCode() {
	case 202:
		return nil, udderrors.ErrNotReady
	case 200:
		return &port.CSVExportResult{ResultsFileHandleID: out.ResultsFileHandleID}, nil
	default:
		return nil, fmt.Errorf("poll csv export on %s: status %d", tableID, resp.StatusCode())
	}
}

// DownloadFileHandle streams handleID to localPath.
func (c *Client) DownloadFileHandle(ctx context.Context, handleID, localPath string) (err error) {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", localPath, cerr)
		}
	}()

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/file/v1/fileHandle/" + handleID + "/url")
	if err != nil {
		return fmt.Errorf("download handle %s: %w", handleID, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 300 {
		return fmt.Errorf("download handle %s: status %d", handleID, resp.StatusCode())
	}

	if _, err = io.Copy(out, body); err != nil {
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return nil
}

type bulkDownloadRequestBody struct {
	TableID       string   `json:"tableId"`
	FileHandleIDs []string `json:"fileHandleIds"`
}

// StartBulkDownload submits a bulk file-handle download job.
func (c *Client) StartBulkDownload(ctx context.Context, req port.BulkDownloadRequest) (string, error) {
	var out asyncJobResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(bulkDownloadRequestBody{TableID: req.TableID, FileHandleIDs: req.FileHandleIDs}).
		SetResult(&out).
		Post("/file/v1/file/bulk/async/start")
	if err != nil {
		return "", fmt.Errorf("start bulk download: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("start bulk download: status %d", resp.StatusCode())
	}
	return out.Token, nil
}

type bulkDownloadResponse struct {
	ZipResultsFileHandleID string            `json:"zipResultFileHandleId"`
	FileSummary            []bulkFileSummary `json:"fileSummary"`
}

type bulkFileSummary struct {
	FileHandleID string `json:"fileHandleId"`
	ZipEntryName string `json:"zipEntryName"`
	FailureCode  string `json:"failureCode"`
}

// PollBulkDownload checks an outstanding bulk download job.
func (c *Client) PollBulkDownload(ctx context.Context, token string) (*port.BulkFileHandleResult, error) {
	var out bulkDownloadResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/file/v1/file/bulk/async/get/" + token)
	if err != nil {
		return nil, fmt.Errorf("poll bulk download: %w", err)
	}

	switch resp.StatusCode() {
	case 202:
		return nil, udderrors.ErrNotReady
	case 200:
		result := &port.BulkFileHandleResult{
			ZipResultsFileHandleID: out.ZipResultsFileHandleID,
			PathByHandleID:         make(map[string]string),
			FailureCodeByHandleID:  make(map[string]string),
		}
		for _, s := range out.FileSummary {
			if s.FailureCode != "" {
				result.FailureCodeByHandleID[s.FileHandleID] = s.FailureCode
				continue
			}
			result.PathByHandleID[s.FileHandleID] = s.ZipEntryName
		}
		return result, nil
	default:
		return nil, fmt.Errorf("poll bulk download: status %d", resp.StatusCode())
	}
}

var _ port.TableService = (*Client)(nil)
