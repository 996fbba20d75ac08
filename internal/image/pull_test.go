package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/google/go-containerregistry/pkg/crane"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input   string
		want    v1.Platform
		wantErr bool
	}{
		{input: "linux/amd64", want: v1.Platform{OS: "linux", Architecture: "amd64"}},
		{input: "linux/arm64/v8", want: v1.Platform{OS: "linux", Architecture: "arm64", Variant: "v8"}},
		{input: "linux", wantErr: true},
		{input: "linux/", wantErr: true},
		{input: "/amd64", wantErr: true},
		{input: "a/b/c/d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parsePlatform(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePlatform: %v", err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Fatalf("platform = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestClassifyPull(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "http 404",
			err:  &transport.Error{StatusCode: http.StatusNotFound},
			want: ErrNotFound,
		},
		{
			name: "manifest unknown",
			err: &transport.Error{
				StatusCode: http.StatusBadRequest,
				Errors:     []transport.Diagnostic{{Code: transport.ManifestUnknownErrorCode}},
			},
			want: ErrNotFound,
		},
		{
			name: "name unknown",
			err: &transport.Error{
				StatusCode: http.StatusBadRequest,
				Errors:     []transport.Diagnostic{{Code: transport.NameUnknownErrorCode}},
			},
			want: ErrNotFound,
		},
		{
			name: "wrapped 404",
			err:  fmt.Errorf("fetching manifest: %w", &transport.Error{StatusCode: http.StatusNotFound}),
			want: ErrNotFound,
		},
		{
			name: "server error",
			err:  &transport.Error{StatusCode: http.StatusBadGateway},
			want: ErrUnreachable,
		},
		{
			name: "connection failure",
			err:  errors.New("dial tcp: connection refused"),
			want: ErrUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPull("python:3.11-slim", tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("classifyPull = %v, want %v", got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("classifyPull = %v, cause lost", got)
			}
		})
	}
}

func TestPullClassifiesFailures(t *testing.T) {
	orig := cranePull
	defer func() { cranePull = orig }()

	cranePull = func(src string, opt ...crane.Option) (v1.Image, error) {
		return nil, &transport.Error{StatusCode: http.StatusNotFound}
	}

	err := Pull(context.Background(), "example.com/missing:tag", "linux/amd64", t.TempDir()+"/image.tar")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPullRejectsBadReference(t *testing.T) {
	err := Pull(context.Background(), "UPPER CASE REF", "linux/amd64", t.TempDir()+"/image.tar")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
