// Package drive is a thin, stateless client over the Google Drive v3 blob
// store. It performs no retries: retry and backoff policy belongs to the
// caller, and authorization failures are reported distinctly so the caller
// can tear down the credential.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMIME = "application/vnd.google-apps.folder"

// ErrUnauthorized marks a rejected credential. The caller is expected to
// discard the token and require an explicit re-link; this layer never retries.
var ErrUnauthorized = errors.New("drive: unauthorized")

// Object describes one remote manifest object.
type Object struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Client wraps the Drive v3 service for one user's sync folder.
type Client struct {
	svc *driveapi.Service
}

// NewClient builds a Drive client authenticated by the given token source.
func NewClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	svc, err := driveapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// EnsureFolder locates the private sync folder by exact name, creating it
// when absent. Returns the folder id.
func (c *Client) EnsureFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMIME)
	list, err := c.svc.Files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", classify("list folders", err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	folder, err := c.svc.Files.Create(&driveapi.File{Name: name, MimeType: folderMIME}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", classify("create folder", err)
	}
	return folder.Id, nil
}

// List returns the manifest objects in the folder, newest first. Manifest
// names sort chronologically, so the name is the primary key and the remote
// createdTime only breaks ties for malformed names.
func (c *Client) List(ctx context.Context, folderID string) ([]Object, error) {
	q := fmt.Sprintf("'%s' in parents and name contains '%s' and trashed = false", escapeQuery(folderID), manifestPrefix)
	var objects []Object
	pageToken := ""
	for {
		call := c.svc.Files.List().Q(q).
			OrderBy("createdTime desc").
			Fields("nextPageToken, files(id, name, createdTime)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, classify("list objects", err)
		}
		for _, f := range list.Files {
			created, _ := time.Parse(time.RFC3339, f.CreatedTime)
			objects = append(objects, Object{ID: f.Id, Name: f.Name, CreatedAt: created})
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	sort.Slice(objects, func(i, j int) bool {
		if objects[i].Name != objects[j].Name {
			return objects[i].Name > objects[j].Name
		}
		return objects[i].CreatedAt.After(objects[j].CreatedAt)
	})
	return objects, nil
}

// Upload stores one manifest object under the given name.
func (c *Client) Upload(ctx context.Context, folderID, name string, data []byte) error {
	file := &driveapi.File{
		Name:     name,
		Parents:  []string{folderID},
		MimeType: "application/json",
	}
	_, err := c.svc.Files.Create(file).Media(bytes.NewReader(data)).Context(ctx).Do()
	if err != nil {
		return classify("upload object", err)
	}
	return nil
}

// Fetch downloads one object's content.
func (c *Client) Fetch(ctx context.Context, objectID string) ([]byte, error) {
	resp, err := c.svc.Files.Get(objectID).Context(ctx).Download()
	if err != nil {
		return nil, classify("fetch object", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

// Delete removes one object.
func (c *Client) Delete(ctx context.Context, objectID string) error {
	if err := c.svc.Files.Delete(objectID).Context(ctx).Do(); err != nil {
		return classify("delete object", err)
	}
	return nil
}

// classify maps credential rejections to ErrUnauthorized and leaves every
// other failure as a plain transport error.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusUnauthorized {
			return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
		}
		if gerr.Code == http.StatusForbidden && hasAuthReason(gerr) {
			return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func hasAuthReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "authError", "expired", "required":
			return true
		}
	}
	return false
}

// escapeQuery escapes a value interpolated into a Drive query string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
