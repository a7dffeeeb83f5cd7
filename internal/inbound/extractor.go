// Package inbound turns untyped webhook JSON into validated work requests.
//
// Field locations are JMESPath expressions so the same service can sit behind
// different chat or event transports without code changes.
package inbound

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
)

// Config names the JMESPath expressions used to locate each field.
// CallerExpr and PayloadExpr are required.
type Config struct {
	CallerExpr      string
	PayloadExpr     string
	ContentTypeExpr string
	MetadataExpr    string
}

// Evaluator abstracts JMESPath operations for testability.
type Evaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

type jmespathEvaluator struct{}

func (jmespathEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// Extractor maps webhook bodies onto WorkRequest values.
type Extractor struct {
	cfg  Config
	eval Evaluator
}

// NewExtractor compiles every configured expression up front so a bad
// expression fails at startup rather than on the first request.
func NewExtractor(cfg Config) (*Extractor, error) {
	return newExtractor(cfg, jmespathEvaluator{})
}

func newExtractor(cfg Config, eval Evaluator) (*Extractor, error) {
	if strings.TrimSpace(cfg.CallerExpr) == "" {
		return nil, errors.New("caller expression is required")
	}
	if strings.TrimSpace(cfg.PayloadExpr) == "" {
		return nil, errors.New("payload expression is required")
	}
	exprs := map[string]string{
		"caller":       cfg.CallerExpr,
		"payload":      cfg.PayloadExpr,
		"content_type": cfg.ContentTypeExpr,
		"metadata":     cfg.MetadataExpr,
	}
	for name, expr := range exprs {
		if err := eval.Validate(expr); err != nil {
			return nil, fmt.Errorf("invalid %s expression %q: %w", name, expr, err)
		}
	}
	return &Extractor{cfg: cfg, eval: eval}, nil
}

// Extract parses body and builds a WorkRequest. Malformed JSON, missing
// fields and undecodable payloads are reported as validation errors.
// The result is not size-checked; the dispatcher does that.
func (e *Extractor) Extract(body []byte) (*model.WorkRequest, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.InvalidRequest("body", "body must be valid JSON")
	}
	return e.ExtractDocument(doc)
}

// ExtractDocument builds a WorkRequest from an already decoded JSON document.
func (e *Extractor) ExtractDocument(doc any) (*model.WorkRequest, error) {
	callerVal, err := e.eval.Evaluate(e.cfg.CallerExpr, doc)
	if err != nil {
		return nil, apperrors.InvalidRequest("caller_ref", "caller could not be extracted")
	}
	caller, ok := scalarString(callerVal)
	if !ok || caller == "" {
		return nil, apperrors.InvalidRequest("caller_ref", "caller is missing")
	}

	payloadVal, err := e.eval.Evaluate(e.cfg.PayloadExpr, doc)
	if err != nil {
		return nil, apperrors.InvalidRequest("payload", "payload could not be extracted")
	}
	payload, err := decodePayload(payloadVal)
	if err != nil {
		return nil, err
	}

	req := &model.WorkRequest{CallerRef: caller, Payload: payload}

	if e.cfg.ContentTypeExpr != "" {
		if v, evalErr := e.eval.Evaluate(e.cfg.ContentTypeExpr, doc); evalErr == nil {
			req.ContentType, _ = scalarString(v)
		}
	}
	if e.cfg.MetadataExpr != "" {
		if v, evalErr := e.eval.Evaluate(e.cfg.MetadataExpr, doc); evalErr == nil {
			req.Metadata = metadataFrom(v)
		}
	}
	return req, nil
}

func decodePayload(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, apperrors.InvalidRequest("payload", "payload is missing")
	}
	s = strings.TrimSpace(s)
	// Accept data URLs such as "data:image/png;base64,...".
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i > 0 {
		s = s[i+len(";base64,"):]
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil && len(b) > 0 {
			return b, nil
		}
	}
	return nil, apperrors.InvalidRequest("payload", "payload must be base64 encoded")
}

// scalarString renders JSON scalars as strings. Chat ids arrive as numbers.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// metadataFrom flattens an object of scalars into string metadata. A bare
// scalar is stored under "caption".
func metadataFrom(v any) map[string]string {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, raw := range t {
			if s, ok := scalarString(raw); ok {
				out[k] = s
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		if s, ok := scalarString(t); ok && s != "" {
			return map[string]string{"caption": s}
		}
		return nil
	}
}
