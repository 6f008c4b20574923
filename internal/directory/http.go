package directory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"

	"github.com/permtree/permtree/internal/acl"
	"github.com/permtree/permtree/internal/version"
)

const principalsEndpoint = "/v1/principals"

var userAgent = fmt.Sprintf("permtree/%s (%s)", version.Version, version.Revision)

// HTTP resolves principals against a directory service over HTTP.
// GET /v1/principals?kind=&name= returns {"guid": "..."} for exactly one
// match, 404 for none and 409 for multiple.
type HTTP struct {
	client *req.Client
}

// NewHTTP creates an HTTP directory client for the given base URL.
func NewHTTP(baseURL string) *HTTP {
	client := req.C().
		SetBaseURL(baseURL).
		SetUserAgent(userAgent).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetTimeout(10 * time.Second)

	return &HTTP{client: client}
}

type principalResponse struct {
	GUID string `json:"guid"`
}

func (h *HTTP) Resolve(ctx context.Context, kind acl.PrincipalKind, name string) (acl.PrincipalID, error) {
	var out principalResponse
	res, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("kind", kind.String()).
		SetQueryParam("name", name).
		SetSuccessResult(&out).
		Get(principalsEndpoint)
	if err != nil {
		return uuid.Nil, fmt.Errorf("directory request %s %q: %w", kind, name, err)
	}

	switch res.StatusCode {
	case http.StatusNotFound, http.StatusConflict:
		return uuid.Nil, fmt.Errorf("%w: %s %q (status %d)",
			acl.ErrUnresolvedPrincipal, kind, name, res.StatusCode)
	}
	if !res.IsSuccessState() {
		return uuid.Nil, fmt.Errorf("directory request %s %q: unexpected status %d",
			kind, name, res.StatusCode)
	}

	id, err := uuid.Parse(out.GUID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q has malformed guid %q",
			acl.ErrUnresolvedPrincipal, kind, name, out.GUID)
	}
	return id, nil
}

var _ acl.Directory = (*HTTP)(nil)
