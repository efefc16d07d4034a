package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// flexBool unmarshals from a JSON bool or a "true"/"false" string; Gamma
// sends both depending on the endpoint.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// stringList accepts either a JSON array of strings or a string holding a
// JSON-encoded array, e.g. "[\"Yes\",\"No\"]". Malformed input yields an
// empty list.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var enc string
	if err := json.Unmarshal(data, &enc); err != nil {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(enc), &arr); err != nil {
		*l = nil
		return nil
	}
	*l = arr
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIEvent groups one or more related markets.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	Active  flexBool    `json:"active"`
	Closed  bool        `json:"closed"`
	Markets []APIMarket `json:"markets"`
}

// APIMarket is a binary market inside an event.
type APIMarket struct {
	ID           string     `json:"id"`
	Question     string     `json:"question"`
	ConditionID  string     `json:"conditionId"`
	Slug         string     `json:"slug"`
	Active       flexBool   `json:"active"`
	Closed       bool       `json:"closed"`
	Outcomes     stringList `json:"outcomes"`
	ClobTokenIDs stringList `json:"clobTokenIds"`
}

// OutcomeName returns the outcome label for the i-th token, or outcome_i
// when the market does not list one.
func (m *APIMarket) OutcomeName(i int) string {
	if i < len(m.Outcomes) && m.Outcomes[i] != "" {
		return m.Outcomes[i]
	}
	return "outcome_" + strconv.Itoa(i)
}

// MarketRefs expands the market into one ref per outcome token, mapped to
// symbol.
func (m *APIMarket) MarketRefs(symbol string) []domain.MarketRef {
	refs := make([]domain.MarketRef, 0, len(m.ClobTokenIDs))
	for i, tok := range m.ClobTokenIDs {
		if tok == "" {
			continue
		}
		refs = append(refs, domain.MarketRef{
			ConditionID: m.ConditionID,
			TokenID:     tok,
			Symbol:      symbol,
			Question:    m.Question,
			Outcome:     m.OutcomeName(i),
		})
	}
	return refs
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// midpointResponse is the body of GET /midpoint.
type midpointResponse struct {
	Mid string `json:"mid"`
}

// apiOrder is the signed order as posted to /order.
type apiOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// postOrderRequest is the body of POST /order.
type postOrderRequest struct {
	Order     apiOrder `json:"order"`
	Owner     string   `json:"owner"`
	OrderType string   `json:"orderType"`
}

// APIOrderResult is the response from placing an order.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ToReceipt converts the API result into a domain receipt.
func (r *APIOrderResult) ToReceipt() domain.OrderReceipt {
	return domain.OrderReceipt{OrderID: r.OrderID, Status: r.Status}
}

// apiCredentials is the body returned by the key derivation endpoints.
type apiCredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}
