package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go-etl-scheduler/internal/config"
	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/pkg/utils"
)

// stepFunc is one named transformation. It must not do I/O or read the clock.
type stepFunc func(rec model.Record, stamp time.Time) (model.Record, error)

var transformations = map[string]stepFunc{
	"trimStrings":       trimStrings,
	"lowercase":         mapStrings(strings.ToLower),
	"uppercase":         mapStrings(strings.ToUpper),
	"removeNulls":       removeNulls,
	"totalSales":        totalSales,
	"categorizeProduct": categorizeProduct,
	"estimatedProfit":   estimatedProfit,
	"processedAt":       processedAt,
}

// Transformer applies the configured mapping to a batch. It is a pure
// function of its configuration, its stamp and the input records.
type Transformer struct {
	required  []string
	typeOrder []string
	types     map[string]string
	steps     []stepFunc
	stepNames []string
	rename    [][2]string
	drop      []string
	stamp     time.Time
}

// NewTransformer validates cfg and builds a transformer. Unknown step or type
// names are rejected here rather than per record.
func NewTransformer(cfg config.TransformConfig) (*Transformer, error) {
	t := &Transformer{
		required: append([]string(nil), cfg.Required...),
		types:    make(map[string]string, len(cfg.Types)),
		drop:     append([]string(nil), cfg.Drop...),
	}

	for field, typ := range cfg.Types {
		if !knownTypes[typ] {
			return nil, fmt.Errorf("field %s: unknown type %q", field, typ)
		}
		t.types[field] = typ
		t.typeOrder = append(t.typeOrder, field)
	}
	sort.Strings(t.typeOrder)

	for _, name := range cfg.Steps {
		fn, ok := transformations[name]
		if !ok {
			return nil, fmt.Errorf("unknown transformation: %s", name)
		}
		t.steps = append(t.steps, fn)
		t.stepNames = append(t.stepNames, name)
	}

	for from, to := range cfg.Rename {
		t.rename = append(t.rename, [2]string{from, to})
	}
	sort.Slice(t.rename, func(i, j int) bool { return t.rename[i][0] < t.rename[j][0] })

	return t, nil
}

// At returns a copy of t whose processedAt step writes stamp.
func (t *Transformer) At(stamp time.Time) *Transformer {
	c := *t
	c.stamp = stamp
	return &c
}

// Steps returns the configured step names in order.
func (t *Transformer) Steps() []string {
	return append([]string(nil), t.stepNames...)
}

// Transform maps every record. The first bad record fails the whole batch
// with a *TransformError carrying its index.
func (t *Transformer) Transform(records []model.Record) ([]model.Record, error) {
	out := make([]model.Record, 0, len(records))
	for i, rec := range records {
		transformed, err := t.apply(rec)
		if err != nil {
			var te *TransformError
			if errors.As(err, &te) {
				te.Index = i
				return nil, te
			}
			return nil, &TransformError{Index: i, Reason: err.Error()}
		}
		out = append(out, transformed)
	}
	return out, nil
}

func (t *Transformer) apply(rec model.Record) (model.Record, error) {
	if field, missing := missingRequired(rec, t.required); missing {
		return rec, &TransformError{Field: field, Reason: "missing required field"}
	}

	for _, field := range t.typeOrder {
		v, ok := rec.Get(field)
		if !ok {
			continue
		}
		converted, err := coerce(v, t.types[field])
		if err != nil {
			return rec, &TransformError{Field: field, Reason: err.Error()}
		}
		rec = rec.With(field, converted)
	}

	for i, step := range t.steps {
		var err error
		if rec, err = step(rec, t.stamp); err != nil {
			return rec, fmt.Errorf("%s: %w", t.stepNames[i], err)
		}
	}

	for _, r := range t.rename {
		rec = rec.Rename(r[0], r[1])
	}
	return rec.Without(t.drop...), nil
}

// mapStrings applies fn to every string field.
func mapStrings(fn func(string) string) stepFunc {
	return func(rec model.Record, _ time.Time) (model.Record, error) {
		for _, f := range rec.Fields() {
			if s, ok := f.Value.(string); ok {
				rec = rec.With(f.Name, fn(s))
			}
		}
		return rec, nil
	}
}

var trimStrings = mapStrings(strings.TrimSpace)

// removeNulls removes nil fields from the record
func removeNulls(rec model.Record, _ time.Time) (model.Record, error) {
	var nulls []string
	for _, f := range rec.Fields() {
		if f.Value == nil {
			nulls = append(nulls, f.Name)
		}
	}
	return rec.Without(nulls...), nil
}

func numericField(rec model.Record, name string) (float64, error) {
	v, ok := rec.Get(name)
	if !ok {
		return 0, fmt.Errorf("field %s is missing", name)
	}
	f, ok := utils.Numeric(v)
	if !ok {
		return 0, fmt.Errorf("field %s must be numeric, got %T", name, v)
	}
	return f, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// totalSales sets total_sales = amount * quantity.
func totalSales(rec model.Record, _ time.Time) (model.Record, error) {
	amount, err := numericField(rec, "amount")
	if err != nil {
		return rec, err
	}
	quantity, err := numericField(rec, "quantity")
	if err != nil {
		return rec, err
	}
	return rec.With("total_sales", round2(amount*quantity)), nil
}

var productCategories = []struct {
	category string
	keywords []string
}{
	{"Computers", []string{"laptop", "monitor", "tablet"}},
	{"Accessories", []string{"keyboard", "mouse", "headphones"}},
	{"Office Equipment", []string{"printer", "scanner"}},
}

// categorizeProduct derives category from keywords in product.
func categorizeProduct(rec model.Record, _ time.Time) (model.Record, error) {
	v, ok := rec.Get("product")
	if !ok {
		return rec, fmt.Errorf("field product is missing")
	}
	product := strings.ToLower(utils.Text(v))
	for _, pc := range productCategories {
		for _, kw := range pc.keywords {
			if strings.Contains(product, kw) {
				return rec.With("category", pc.category), nil
			}
		}
	}
	return rec.With("category", "Other"), nil
}

var profitMargins = map[string]float64{
	"Computers":   0.20,
	"Accessories": 0.30,
}

const defaultProfitMargin = 0.15

// estimatedProfit applies the category margin to amount.
func estimatedProfit(rec model.Record, _ time.Time) (model.Record, error) {
	amount, err := numericField(rec, "amount")
	if err != nil {
		return rec, err
	}
	margin := defaultProfitMargin
	if v, ok := rec.Get("category"); ok {
		if m, ok := profitMargins[utils.Text(v)]; ok {
			margin = m
		}
	}
	return rec.With("estimated_profit", round2(amount*margin)), nil
}

// processedAt stamps the run time. The stamp comes from the runner so the
// transform stays deterministic.
func processedAt(rec model.Record, stamp time.Time) (model.Record, error) {
	return rec.With("processed_at", stamp.UTC().Format(time.RFC3339)), nil
}
