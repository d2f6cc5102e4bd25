package lookup

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	nameEndpoint = "/compound/name/{name}/property/IsomericSMILES/JSON"
	cidEndpoint  = "/compound/cid/{cid}/property/IsomericSMILES/JSON"
)

type propertyResponse struct {
	PropertyTable struct {
		Properties []compoundProperties `json:"Properties"`
	} `json:"PropertyTable"`
}

// PubChem renamed its SMILES properties; all spellings are accepted.
type compoundProperties struct {
	CID             int    `json:"CID"`
	SMILES          string `json:"SMILES"`
	IsomericSMILES  string `json:"IsomericSMILES"`
	CanonicalSMILES string `json:"CanonicalSMILES"`
}

func (p compoundProperties) structure() string {
	switch {
	case p.IsomericSMILES != "":
		return p.IsomericSMILES
	case p.SMILES != "":
		return p.SMILES
	default:
		return p.CanonicalSMILES
	}
}

type PubChem struct {
	cfg    *ClientConfig
	client *resty.Client
}

var _ Resolver = (*PubChem)(nil)

func NewPubChem(cfg *ClientConfig) (*PubChem, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("pubchem base url is empty")
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(8*cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return true
			}
			return r.StatusCode() == http.StatusServiceUnavailable || r.StatusCode() == http.StatusTooManyRequests
		})

	return &PubChem{
		cfg:    cfg,
		client: client,
	}, nil
}

func (p *PubChem) ByName(ctx context.Context, name string) Resolution {
	name = strings.TrimSpace(name)
	if name == "" {
		return failed(fmt.Errorf("lookup by name: empty name"))
	}
	return p.fetch(ctx, nameEndpoint, "name", name)
}

func (p *PubChem) ByCID(ctx context.Context, cid int) Resolution {
	if cid <= 0 {
		return failed(fmt.Errorf("lookup by cid: invalid cid %d", cid))
	}
	return p.fetch(ctx, cidEndpoint, "cid", strconv.Itoa(cid))
}

func (p *PubChem) fetch(ctx context.Context, endpoint, param, value string) Resolution {
	var out propertyResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam(param, value).
		SetResult(&out).
		Get(endpoint)
	if err != nil {
		log.Debug().Err(err).Str(param, value).Msg("pubchem request failed")
		return failed(fmt.Errorf("pubchem %s %s: %w", param, value, err))
	}
	if resp.StatusCode() == http.StatusNotFound {
		return failed(fmt.Errorf("pubchem %s %s: %w", param, value, ErrNotFound))
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Str(param, value).Msg("pubchem non-2xx")
		return failed(fmt.Errorf("pubchem %s %s: status %d", param, value, resp.StatusCode()))
	}
	for _, props := range out.PropertyTable.Properties {
		if s := props.structure(); s != "" {
			return resolved(s)
		}
	}
	return failed(fmt.Errorf("pubchem %s %s: %w", param, value, ErrNotFound))
}
