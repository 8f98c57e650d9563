package artifact

import (
	"context"
	"net/http"

	"github.com/kbukum/sessionkit/httpclient"
)

// RemoteStore is the durable artifact store behind the local cache.
type RemoteStore interface {
	GetArtifact(ctx context.Context, topic, variant string) (artifact string, ok bool, err error)
	PutArtifact(ctx context.Context, topic, variant, artifact string) error
	DeleteArtifact(ctx context.Context, topic, variant string) error
}

// HTTPRemoteStore talks to the backend artifact cache API.
type HTTPRemoteStore struct {
	client *httpclient.Client
	path   string
}

// NewHTTPRemoteStore creates a remote store over the given client.
// path is the cache endpoint, e.g. "/api/artifact/cache".
func NewHTTPRemoteStore(client *httpclient.Client, path string) *HTTPRemoteStore {
	return &HTTPRemoteStore{client: client, path: path}
}

type remoteGetResponse struct {
	Cached   bool   `json:"cached"`
	Artifact string `json:"artifact"`
}

type remotePutRequest struct {
	Topic    string `json:"topic"`
	Variant  string `json:"variant"`
	Artifact string `json:"artifact,omitempty"`
}

// GetArtifact fetches an artifact; a miss is (_, false, nil).
func (r *HTTPRemoteStore) GetArtifact(ctx context.Context, topic, variant string) (string, bool, error) {
	resp, err := r.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   r.path,
		Query:  map[string]string{"topic": topic, "variant": variant},
	})
	if err != nil {
		if httpclient.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}

	var body remoteGetResponse
	if err := resp.JSON(&body); err != nil {
		return "", false, err
	}
	if !body.Cached {
		return "", false, nil
	}
	return body.Artifact, true, nil
}

// PutArtifact writes an artifact through to the backend.
func (r *HTTPRemoteStore) PutArtifact(ctx context.Context, topic, variant, artifact string) error {
	_, err := r.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   r.path,
		Body:   remotePutRequest{Topic: topic, Variant: variant, Artifact: artifact},
	})
	return err
}

// DeleteArtifact removes an artifact from the backend.
func (r *HTTPRemoteStore) DeleteArtifact(ctx context.Context, topic, variant string) error {
	_, err := r.client.Do(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   r.path,
		Body:   remotePutRequest{Topic: topic, Variant: variant},
	})
	return err
}
