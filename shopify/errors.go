package shopify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tnicklin/dreamshop/errs"
)

const maxErrorBody = 64 << 10

// apiError is the Shopify error envelope. Errors is either a string or an
// object of field name to messages.
type apiError struct {
	Errors json.RawMessage `json:"errors"`
}

func (e *apiError) messages() []string {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(e.Errors, &single); err == nil {
		return []string{single}
	}

	var list []string
	if err := json.Unmarshal(e.Errors, &list); err == nil {
		return list
	}

	var fields map[string][]string
	if err := json.Unmarshal(e.Errors, &fields); err == nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []string
		for _, k := range keys {
			for _, msg := range fields[k] {
				if k == "base" {
					out = append(out, msg)
					continue
				}
				out = append(out, k+" "+msg)
			}
		}
		return out
	}

	return []string{string(e.Errors)}
}

func checkResponse(op string, res *resty.Response, err error) error {
	if err != nil {
		return errs.Classify(op, err, errs.Catalog)
	}
	if !res.IsError() {
		return nil
	}

	if res.StatusCode() == http.StatusNotFound {
		return errs.E(errs.Catalog, op, ErrNotFound)
	}

	apiErr, _ := res.Error().(*apiError)
	if msgs := apiErr.messages(); len(msgs) > 0 {
		if res.StatusCode() == http.StatusUnprocessableEntity {
			return errs.Errorf(errs.Catalog, op, "%s", strings.Join(msgs, "; "))
		}
		return errs.Errorf(errs.Catalog, op, "status %d: %s", res.StatusCode(), strings.Join(msgs, "; "))
	}

	body := res.Body()
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return errs.E(errs.Catalog, op, fmt.Errorf("status %d: %s", res.StatusCode(), strings.TrimSpace(string(body))))
}
