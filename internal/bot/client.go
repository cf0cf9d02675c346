package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the product page does not carry the
// expected event/ticket markers. Transport failures are reported as-is.
var ErrNotFound = errors.New("product identifiers not found")

// availabilityPattern matches the JSON object embedded in the vendor's
// JavaScript availability response.
var availabilityPattern = regexp.MustCompile(`(?s)ticket\.setAvailableDateTimes\((\{.*?\})\);`)

// Cookie is the session cookie handed off for checkout
type Cookie struct {
	Name   string
	Value  string
	Domain string
}

// CartStatus tags the outcome of one add-to-cart attempt
type CartStatus int

const (
	// CartAdded means the vendor accepted the item AND the checkout page
	// confirmed it (no phantom cart).
	CartAdded CartStatus = iota
	// CartRejected means the vendor declined the attempt or the checkout
	// verification found the cart empty.
	CartRejected
	// CartError means a transport or protocol failure.
	CartError
)

// CartResult is the tagged outcome of AddToCart
type CartResult struct {
	Status CartStatus
	Cookie *Cookie
	Reason string
}

// Config holds the vendor endpoints and verification phrase lists
type Config struct {
	BaseURL            string
	StoreCode          string
	RequestTimeout     time.Duration
	PositiveIndicators []string
	NegativeIndicators []string
}

// Client talks to the vendor shop while impersonating a regular browser.
//
// Each client owns exactly one network session (cookie jar + fingerprint
// headers). Sessions are never shared between concurrent race attempts,
// otherwise one attempt's cookies would corrupt another's cart.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logrus.Entry
}

// Browser fingerprint sent with every request. The vendor fronts its shop
// with bot protection keyed on these headers.
var fingerprintHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7",
	"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Upgrade-Insecure-Requests": "1",
}

// NewClient creates a client with a fresh cookie jar
func NewClient(cfg Config, logger *logrus.Entry) *Client {
	jar, _ := cookiejar.New(nil)
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.RequestTimeout,
		},
		logger: logger.WithField("component", "bot-client"),
	}
}

// Close releases idle connections held by the session
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range fingerprintHeaders {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

// ExtractProductIdentifiers fetches the product page and parses the event
// id from the first form's action attribute and the ticket id from the SKU
// meta tag. Returns ErrNotFound when the markers are absent.
func (c *Client) ExtractProductIdentifiers(ctx context.Context, productURL string) (string, string, error) {
	resp, err := c.get(ctx, productURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch product page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warnf("Product page returned status %d", resp.StatusCode)
		return "", "", ErrNotFound
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse product page: %w", err)
	}

	eventID := ""
	if action, ok := doc.Find("form").First().Attr("action"); ok {
		parts := strings.Split(strings.TrimRight(action, "/"), "/")
		eventID = parts[len(parts)-1]
	}

	ticketID := ""
	if sku, ok := doc.Find(`meta[itemprop="sku"]`).First().Attr("content"); ok {
		parts := strings.Split(sku, "-")
		ticketID = parts[len(parts)-1]
	}

	if eventID == "" || ticketID == "" {
		return "", "", ErrNotFound
	}
	return eventID, ticketID, nil
}

// FetchAvailability calls the vendor's JSON-in-JavaScript availability
// endpoint and extracts the embedded object. Any transport or parse
// failure is an error; the caller treats errors as "unknown, try again".
func (c *Client) FetchAvailability(ctx context.Context, eventID, ticketID string) (Snapshot, error) {
	rawURL := fmt.Sprintf("%s/product/catalog_ajax/dates/id/%s/?___store=%s&ticket_id=%s&availabilityType=starttime",
		c.cfg.BaseURL, eventID, c.cfg.StoreCode, ticketID)

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("availability request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("availability endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read availability response: %w", err)
	}

	match := availabilityPattern.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("availability pattern not found in response")
	}

	var snap Snapshot
	if err := json.Unmarshal(match[1], &snap); err != nil {
		return nil, fmt.Errorf("failed to parse availability data: %w", err)
	}
	return snap, nil
}

// ResolveOptionToken resolves the vendor line-item token required before
// add-to-cart. An empty token with nil error means the slot cannot be
// purchased right now.
func (c *Client) ResolveOptionToken(ctx context.Context, eventID, variation, date, timeRaw string) (string, error) {
	rawURL := fmt.Sprintf("%s/product/catalog_ajax/options/id/%s/?___store=%s&variation_id=%s&date=%s&time=%s",
		c.cfg.BaseURL, eventID, c.cfg.StoreCode,
		url.QueryEscape(variation), url.QueryEscape(date), url.QueryEscape(timeRaw))

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("options request failed: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse options response: %w", err)
	}

	if id, ok := doc.Find("tr.table-row").First().Attr("id"); ok {
		parts := strings.Split(id, "-")
		return parts[len(parts)-1], nil
	}
	return "", nil
}

// atcResponse is the vendor's add-to-cart JSON reply. QtyTotal arrives as a
// number or numeric string depending on shop version.
type atcResponse struct {
	Success      bool        `json:"success"`
	QuoteItemIDs string      `json:"qtm_quote_item_ids"`
	QuoteItemQty json.Number `json:"qtm_quote_item_qtys"`
	CheckoutURL  string      `json:"checkout_url"`
	Error        string      `json:"error"`
	Messages     []struct {
		Text string `json:"text"`
	} `json:"messages"`
}

// AddToCart posts the add-to-cart form and verifies the result against the
// checkout page.
//
// A vendor-reported success is not trusted at face value: the shop happily
// confirms adds that lost a back-end inventory race. Only when the checkout
// page (fetched with the same session) shows a positive indicator and no
// negative one is the outcome CartAdded.
func (c *Client) AddToCart(ctx context.Context, eventID, date, timeShort, variation, optionToken string, quantity int, productURL string) CartResult {
	atcURL := fmt.Sprintf("%s/checkout/ajaxcart/ajaxadd/product/%s", c.cfg.BaseURL, eventID)

	form := url.Values{
		"product":          {eventID},
		"related_product":  {""},
		"ticket_date":      {date},
		"ticket_time":      {timeShort},
		"ticket_variation": {variation},
		fmt.Sprintf("ticket_option_qty[%s]", optionToken): {fmt.Sprintf("%d", quantity)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, atcURL, strings.NewReader(form.Encode()))
	if err != nil {
		return CartResult{Status: CartError, Reason: err.Error()}
	}
	for k, v := range fingerprintHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Origin", c.cfg.BaseURL)
	req.Header.Set("Referer", productURL)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		return CartResult{Status: CartError, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CartResult{Status: CartError, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var atc atcResponse
	if err := json.NewDecoder(resp.Body).Decode(&atc); err != nil {
		return CartResult{Status: CartError, Reason: fmt.Sprintf("unparsable ATC response: %v", err)}
	}

	if !atc.Success {
		reason := "unknown error"
		if len(atc.Messages) > 0 && atc.Messages[0].Text != "" {
			reason = atc.Messages[0].Text
		} else if atc.Error != "" {
			reason = atc.Error
		}
		return CartResult{Status: CartRejected, Reason: reason}
	}

	qty, _ := atc.QuoteItemQty.Int64()
	if atc.QuoteItemIDs == "" || qty <= 0 {
		// Success without a quote item means nothing was reserved.
		return CartResult{Status: CartRejected, Reason: "no items added to cart (out of stock?)"}
	}

	if !c.verifyCartAtCheckout(ctx, atc.CheckoutURL) {
		return CartResult{Status: CartRejected, Reason: "cart not valid at checkout (phantom cart)"}
	}

	cookie := c.SessionCookie()
	if cookie == nil {
		return CartResult{Status: CartError, Reason: "no session cookie after cart add"}
	}
	return CartResult{Status: CartAdded, Cookie: cookie}
}

// verifyCartAtCheckout re-fetches the checkout page with the same session
// and scans for the configured indicator phrases. Negative indicators win.
func (c *Client) verifyCartAtCheckout(ctx context.Context, checkoutURL string) bool {
	if checkoutURL == "" {
		checkoutURL = c.cfg.BaseURL + "/checkout/cart"
	}

	resp, err := c.get(ctx, checkoutURL)
	if err != nil {
		c.logger.Warnf("Cart verification request failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warnf("Cart verification returned status %d", resp.StatusCode)
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	html := string(body)

	for _, indicator := range c.cfg.NegativeIndicators {
		if strings.Contains(html, indicator) {
			c.logger.Warnf("Cart verification found negative indicator: %q", indicator)
			return false
		}
	}
	for _, indicator := range c.cfg.PositiveIndicators {
		if strings.Contains(html, indicator) {
			return true
		}
	}

	// No clear indicator either way: treat as invalid rather than risk a
	// phantom cart.
	return false
}

// SessionCookie extracts the shop session cookie from the jar, preferring
// the "frontend" cookie and falling back to the first one.
func (c *Client) SessionCookie() *Cookie {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil
	}
	cookies := c.http.Jar.Cookies(base)
	if len(cookies) == 0 {
		return nil
	}

	chosen := cookies[0]
	for _, ck := range cookies {
		if strings.Contains(ck.Name, "frontend") {
			chosen = ck
			break
		}
	}
	return &Cookie{
		Name:   chosen.Name,
		Value:  chosen.Value,
		Domain: base.Hostname(),
	}
}
