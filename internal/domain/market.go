package domain

// MarketRef associates a prediction-market outcome token with the exchange
// symbol whose price drives it. The set of refs is produced once by market
// discovery and never changes for the lifetime of the process.
type MarketRef struct {
	ConditionID string `json:"condition_id"`
	TokenID     string `json:"token_id"`
	Symbol      string `json:"symbol"`
	Question    string `json:"question"`
	Outcome     string `json:"outcome"`
}

// Key returns the unique market key (condition id + token id).
func (m MarketRef) Key() string {
	return m.ConditionID + ":" + m.TokenID
}
