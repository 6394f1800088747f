package platform

import (
	"context"
	"net/http"
	"testing"

	"mediacrawl/pkg/proxy"
)

type stubClient struct{}

func (stubClient) Platform() string { return "stub" }
func (stubClient) Search(ctx context.Context, keyword string, page int, searchID string) (*SearchPage, error) {
	return &SearchPage{}, nil
}
func (stubClient) Detail(ctx context.Context, itemID string) (*ContentItem, error) {
	return &ContentItem{}, nil
}
func (stubClient) CreatorInfo(ctx context.Context, creatorID string) (*Creator, error) {
	return &Creator{}, nil
}
func (stubClient) CreatorContent(ctx context.Context, creatorID, cursor string) (*ContentPage, error) {
	return &ContentPage{}, nil
}
func (stubClient) Comments(ctx context.Context, itemID, cursor string) (*CommentPage, error) {
	return &CommentPage{}, nil
}
func (stubClient) SubComments(ctx context.Context, itemID, rootCommentID, cursor string) (*CommentPage, error) {
	return &CommentPage{}, nil
}
func (stubClient) Probe(ctx context.Context) error         { return nil }
func (stubClient) UpdateProxy(lease *proxy.Lease)          {}
func (stubClient) UpdateCookies(cookies map[string]string) {}

var _ Signer = signerFunc(nil)

type signerFunc func(method, uri string, body []byte) (http.Header, error)

func (f signerFunc) Sign(method, uri string, body []byte) (http.Header, error) {
	return f(method, uri, body)
}

func TestRegistry(t *testing.T) {
	Register("stub", func() (Client, error) { return stubClient{}, nil })

	client, err := New("stub")
	if err != nil {
		t.Fatalf("New(stub) failed: %v", err)
	}
	if client.Platform() != "stub" {
		t.Errorf("expected platform stub, got %s", client.Platform())
	}

	if _, err := New("missing"); err == nil {
		t.Error("expected error for unregistered platform")
	}

	found := false
	for _, name := range Registered() {
		if name == "stub" {
			found = true
		}
	}
	if !found {
		t.Errorf("Registered() = %v, missing stub", Registered())
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected duplicate Register to panic")
		}
	}()
	Register("dup", func() (Client, error) { return stubClient{}, nil })
	Register("dup", func() (Client, error) { return stubClient{}, nil })
}

func TestCommentNodeIsRoot(t *testing.T) {
	root := CommentNode{ID: "c1"}
	reply := CommentNode{ID: "c2", ParentID: "c1"}

	if !root.IsRoot() {
		t.Error("node without parent should be a root")
	}
	if reply.IsRoot() {
		t.Error("node with parent should not be a root")
	}
}

func TestResolveSearchConfig(t *testing.T) {
	tests := []struct {
		platform string
		pageSize int
	}{
		{"xhs", 20},
		{"douyin", 10},
		{"weibo", 10},
		{"bilibili", 20},
	}

	for _, tt := range tests {
		sc, err := ResolveSearchConfig(tt.platform)
		if err != nil {
			t.Fatalf("ResolveSearchConfig(%s) failed: %v", tt.platform, err)
		}
		if sc.PlatformKey() != tt.platform {
			t.Errorf("PlatformKey() = %s, want %s", sc.PlatformKey(), tt.platform)
		}
		if sc.PageSize() != tt.pageSize {
			t.Errorf("PageSize() for %s = %d, want %d", tt.platform, sc.PageSize(), tt.pageSize)
		}
	}

	if _, err := ResolveSearchConfig("myspace"); err == nil {
		t.Error("expected error for unknown platform")
	}
}
