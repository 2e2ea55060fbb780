package tool

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"convo/core"
)

const alphaVantageEndpoint = "https://www.alphavantage.co/query"

type stockArgs struct {
	Symbol string `json:"symbol" description:"Ticker symbol, e.g. AAPL"`
}

// StockQuoteOptions configure the stock quote tool.
type StockQuoteOptions struct {
	// APIKey for Alpha Vantage. Defaults to the ALPHAVANTAGE_API_KEY env var.
	APIKey string
	// HTTPClient used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Endpoint overrides the API URL, used in tests.
	Endpoint string
}

// NewStockQuote returns a tool fetching the current global quote for a
// symbol from Alpha Vantage. The provider's JSON payload is passed through
// unmodified so the model sees exactly what the API returned.
func NewStockQuote(optFns ...func(o *StockQuoteOptions)) *FunctionTool {
	opts := StockQuoteOptions{
		APIKey:     os.Getenv("ALPHAVANTAGE_API_KEY"),
		HTTPClient: http.DefaultClient,
		Endpoint:   alphaVantageEndpoint,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewFunctionToolFromStruct(
		"get_stock_price",
		"Get the current stock price for a given symbol.",
		stockArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			symbol, _ := args["symbol"].(string)

			query := url.Values{}
			query.Set("function", "GLOBAL_QUOTE")
			query.Set("symbol", symbol)
			query.Set("apikey", opts.APIKey)

			req, err := http.NewRequestWithContext(toolCtx.Context(), http.MethodGet, opts.Endpoint+"?"+query.Encode(), nil)
			if err != nil {
				return nil, err
			}

			resp, err := opts.HTTPClient.Do(req)
			if err != nil {
				return map[string]any{"error": err.Error()}, nil
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return map[string]any{"error": err.Error()}, nil
			}

			var quote map[string]any
			if err := json.Unmarshal(body, &quote); err != nil {
				return map[string]any{"error": fmt.Sprintf("malformed quote payload: %v", err)}, nil
			}

			return quote, nil
		},
	)
}
