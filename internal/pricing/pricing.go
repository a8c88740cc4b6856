// Package pricing converts OpenRouter per-token USD prices into the two
// mappings stored on catalog entries: per token and per million tokens.
package pricing

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// TokensPerMillion is the multiplier between per-token and per-MTok prices.
const TokensPerMillion = 1_000_000

var million = decimal.NewFromInt(TokensPerMillion)

// Price is a single pricing dimension (e.g. "prompt", "completion").
type Price struct {
	Dimension string
	USD       float64
}

// Prices is an ordered pricing mapping. Order follows the remote record.
type Prices []Price

// Get returns the price for a dimension.
func (p Prices) Get(dimension string) (float64, bool) {
	for _, pr := range p {
		if pr.Dimension == dimension {
			return pr.USD, true
		}
	}
	return 0, false
}

// Dimensions returns the dimension names in order.
func (p Prices) Dimensions() []string {
	dims := make([]string, 0, len(p))
	for _, pr := range p {
		dims = append(dims, pr.Dimension)
	}
	return dims
}

// MarshalJSON renders the mapping as a JSON object in dimension order.
func (p Prices) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pr := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(pr.Dimension)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(FormatFloat(pr.USD))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML renders the mapping as a YAML mapping in dimension order.
func (p Prices) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, pr := range p {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: pr.Dimension},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: FormatFloat(pr.USD)},
		)
	}
	return node, nil
}

// Derived holds both pricing mappings computed from one raw pricing object.
type Derived struct {
	PerToken Prices
	PerMTok  Prices
}

// Derive parses a raw pricing object (dimension -> string or number USD per
// token). Values that do not parse as finite numbers are left out of both
// mappings.
func Derive(raw []byte) Derived {
	d := Derived{PerToken: Prices{}, PerMTok: Prices{}}

	obj := gjson.ParseBytes(raw)
	if !obj.IsObject() {
		return d
	}

	obj.ForEach(func(key, value gjson.Result) bool {
		perToken, ok := parseUSD(value)
		if !ok {
			return true
		}
		perTokenF, ok := finite(perToken)
		if !ok {
			return true
		}
		perMTokF, ok := finite(perToken.Mul(million))
		if !ok {
			return true
		}
		d.PerToken = append(d.PerToken, Price{Dimension: key.String(), USD: perTokenF})
		d.PerMTok = append(d.PerMTok, Price{Dimension: key.String(), USD: perMTokF})
		return true
	})

	return d
}

func parseUSD(value gjson.Result) (decimal.Decimal, bool) {
	var s string
	switch value.Type {
	case gjson.String:
		s = strings.TrimSpace(value.Str)
	case gjson.Number:
		s = value.Raw
	default:
		// null, booleans, objects and arrays carry no price
		return decimal.Decimal{}, false
	}
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func finite(d decimal.Decimal) (float64, bool) {
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// FormatFloat renders a float the way the catalog document stores them:
// shortest round-trip digits, exponent form below 1e-4 or from 1e16 up,
// and a trailing ".0" on integral values.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(s[strings.IndexByte(s, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return s
	}
	s = strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
