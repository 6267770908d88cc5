package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tablesync/core/dataset"
	"tablesync/core/utils"
)

// FeatureTable is a dataset.Table backed by one feature-service table.
type FeatureTable struct {
	url      string
	keyField string
	session  *Session
	client   *http.Client

	meta *tableInfo
}

// tableInfo is the cached result of the describe call.
type tableInfo struct {
	Name          string
	ObjectIDField string
	GeometryType  string
	Schema        dataset.Schema
}

// NewFeatureTable wraps the feature-service table at url, keyed by keyField.
// The session may be nil for tables that allow anonymous access.
func NewFeatureTable(url, keyField string, session *Session) *FeatureTable {
	return &FeatureTable{
		url:      strings.TrimRight(url, "/"),
		keyField: keyField,
		session:  session,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

func (t *FeatureTable) Name() string {
	if t.meta != nil && t.meta.Name != "" {
		return t.meta.Name
	}
	return t.url
}

func (t *FeatureTable) KeyField() string { return t.keyField }

// Schema describes the table. Geometry is not a listed field on the wire, so
// layers with a geometry type get a synthetic "shape" field appended.
func (t *FeatureTable) Schema(ctx context.Context) (dataset.Schema, error) {
	info, err := t.describe(ctx)
	if err != nil {
		return nil, err
	}
	return info.Schema, nil
}

func (t *FeatureTable) describe(ctx context.Context) (*tableInfo, error) {
	if t.meta != nil {
		return t.meta, nil
	}

	body, err := t.get(ctx, t.url, url.Values{})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Name              string `json:"name"`
		ObjectIDFieldName string `json:"objectIdField"`
		GeometryType      string `json:"geometryType"`
		Fields            []struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Nullable bool   `json:"nullable"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse table description from %s: %w", t.url, err)
	}

	info := &tableInfo{
		Name:          parsed.Name,
		ObjectIDField: parsed.ObjectIDFieldName,
		GeometryType:  parsed.GeometryType,
	}
	for _, f := range parsed.Fields {
		info.Schema = append(info.Schema, dataset.FieldDescriptor{
			Name:     strings.ToLower(f.Name),
			Type:     fieldTypeFromEsri(f.Type),
			Nullable: f.Nullable,
		})
	}
	if parsed.GeometryType != "" {
		info.Schema = append(info.Schema, dataset.FieldDescriptor{
			Name:     "shape",
			Type:     dataset.FieldGeometry,
			Nullable: true,
		})
	}

	t.meta = info
	return info, nil
}

// fieldTypeFromEsri maps a wire field type onto the portable set.
func fieldTypeFromEsri(esri string) dataset.FieldType {
	switch esri {
	case "esriFieldTypeString", "esriFieldTypeGUID", "esriFieldTypeGlobalID":
		return dataset.FieldText
	case "esriFieldTypeInteger", "esriFieldTypeSmallInteger", "esriFieldTypeOID":
		return dataset.FieldInteger
	case "esriFieldTypeDouble", "esriFieldTypeSingle":
		return dataset.FieldFloat
	case "esriFieldTypeDate":
		return dataset.FieldDate
	case "esriFieldTypeGeometry":
		return dataset.FieldGeometry
	default:
		return dataset.FieldOther
	}
}

// Records queries every row. Attribute names are lowercased so records from
// any backend compare under the same keys; geometry rides along as raw JSON
// under the synthetic "shape" field.
func (t *FeatureTable) Records(ctx context.Context) (dataset.Iterator, error) {
	info, err := t.describe(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("outFields", "*")
	if info.GeometryType != "" {
		params.Set("returnGeometry", "true")
	}

	body, err := t.get(ctx, t.url+"/query", params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Features []struct {
			Attributes map[string]any  `json:"attributes"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse query response from %s: %w", t.url, err)
	}

	records := make([]dataset.Record, 0, len(parsed.Features))
	for _, feat := range parsed.Features {
		rec := make(dataset.Record, len(feat.Attributes)+1)
		for name, val := range feat.Attributes {
			rec[strings.ToLower(name)] = val
		}
		if len(feat.Geometry) > 0 {
			rec["shape"] = string(feat.Geometry)
		}
		records = append(records, rec)
	}
	return dataset.NewSliceIterator(records), nil
}

// Keys enumerates the key field without pulling full rows. When the table is
// keyed by its object id field the cheaper id-only form is used.
func (t *FeatureTable) Keys(ctx context.Context) ([]string, error) {
	info, err := t.describe(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("returnGeometry", "false")

	if strings.EqualFold(t.keyField, info.ObjectIDField) {
		params.Set("returnIdsOnly", "true")
		body, err := t.get(ctx, t.url+"/query", params)
		if err != nil {
			return nil, err
		}
		var parsed struct {
			ObjectIDs []int64 `json:"objectIds"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse id response from %s: %w", t.url, err)
		}
		keys := make([]string, 0, len(parsed.ObjectIDs))
		for _, id := range parsed.ObjectIDs {
			keys = append(keys, strconv.FormatInt(id, 10))
		}
		return keys, nil
	}

	params.Set("outFields", t.keyField)
	body, err := t.get(ctx, t.url+"/query", params)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Features []struct {
			Attributes map[string]any `json:"attributes"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse key response from %s: %w", t.url, err)
	}
	keys := make([]string, 0, len(parsed.Features))
	for _, feat := range parsed.Features {
		for _, val := range feat.Attributes {
			keys = append(keys, utils.ToString(val))
		}
	}
	return keys, nil
}

// WriteBatch applies one batch. Inserts and updates go through applyEdits
// and are counted per record from its result lists; deletes go through
// deleteFeatures with a where clause on the key field.
func (t *FeatureTable) WriteBatch(ctx context.Context, kind dataset.OperationKind, records []dataset.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if kind == dataset.OpDelete {
		return t.deleteBatch(ctx, records)
	}
	return t.applyEdits(ctx, kind, records)
}

// editResult is one entry of an applyEdits result list.
type editResult struct {
	Success bool `json:"success"`
	Error   *struct {
		Description string `json:"description"`
	} `json:"error"`
}

func (t *FeatureTable) applyEdits(ctx context.Context, kind dataset.OperationKind, records []dataset.Record) (int, error) {
	features := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		attrs := make(map[string]any, len(rec))
		var geometry json.RawMessage
		for name, val := range rec {
			if name == "shape" {
				if s, ok := val.(string); ok && s != "" {
					geometry = json.RawMessage(s)
				}
				continue
			}
			attrs[name] = val
		}
		feat := map[string]any{"attributes": attrs}
		if geometry != nil {
			feat["geometry"] = geometry
		}
		features = append(features, feat)
	}

	payload, err := json.Marshal(features)
	if err != nil {
		return 0, err
	}

	form := url.Values{}
	switch kind {
	case dataset.OpInsert:
		form.Set("adds", string(payload))
	case dataset.OpUpdate:
		form.Set("updates", string(payload))
	default:
		return 0, fmt.Errorf("unsupported operation %q for applyEdits", kind)
	}

	body, err := t.post(ctx, t.url+"/applyEdits", form)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		AddResults    []editResult `json:"addResults"`
		UpdateResults []editResult `json:"updateResults"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse applyEdits response from %s: %w", t.url, err)
	}

	results := parsed.AddResults
	if kind == dataset.OpUpdate {
		results = parsed.UpdateResults
	}

	succeeded := 0
	var firstErr string
	for _, res := range results {
		if res.Success {
			succeeded++
			continue
		}
		if firstErr == "" && res.Error != nil {
			firstErr = res.Error.Description
		}
	}
	if succeeded < len(records) {
		if firstErr == "" {
			firstErr = "edit rejected"
		}
		return succeeded, fmt.Errorf("%d of %d %s records failed on %s: %s",
			len(records)-succeeded, len(records), kind, t.Name(), firstErr)
	}
	return succeeded, nil
}

func (t *FeatureTable) deleteBatch(ctx context.Context, records []dataset.Record) (int, error) {
	info, err := t.describe(ctx)
	if err != nil {
		return 0, err
	}

	field, _ := info.Schema.Field(t.keyField)
	quote := field.Type == dataset.FieldText || field.Type == dataset.FieldDate

	values := make([]string, 0, len(records))
	for _, rec := range records {
		val := utils.ToString(rec[strings.ToLower(t.keyField)])
		if quote {
			val = "'" + strings.ReplaceAll(val, "'", "''") + "'"
		}
		values = append(values, val)
	}

	form := url.Values{}
	form.Set("where", fmt.Sprintf("%s IN (%s)", t.keyField, strings.Join(values, ",")))

	body, err := t.post(ctx, t.url+"/deleteFeatures", form)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Success bool `json:"success"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse deleteFeatures response from %s: %w", t.url, err)
	}
	if parsed.Error != nil {
		return 0, fmt.Errorf("delete on %s failed: %s", t.Name(), parsed.Error.Message)
	}
	if !parsed.Success {
		return 0, fmt.Errorf("delete on %s was not acknowledged", t.Name())
	}
	return len(records), nil
}

func (t *FeatureTable) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	params.Set("f", "json")
	if token := t.session.Token(); token != "" {
		params.Set("token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return t.do(req)
}

func (t *FeatureTable) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	form.Set("f", "json")
	if token := t.session.Token(); token != "" {
		form.Set("token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req)
}

// do executes the request and surfaces the service's body-level error
// envelope, which arrives with HTTP 200.
func (t *FeatureTable) do(req *http.Request) ([]byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", req.URL.Path, resp.StatusCode)
	}

	var envelope struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return nil, fmt.Errorf("%s returned error %d: %s", req.URL.Path, envelope.Error.Code, envelope.Error.Message)
	}
	return body, nil
}
