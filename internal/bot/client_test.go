package bot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// shopServer simulates the vendor shop for one test. checkoutBody controls
// what the cart verification sees.
type shopServer struct {
	*httptest.Server
	checkoutBody string
	atcBody      string
	atcStatus    int
}

func newShopServer(t *testing.T) *shopServer {
	t.Helper()
	shop := &shopServer{
		checkoutBody: `<html><body><h1>Warenkorb</h1><div>Zwischensumme: 120,00 €</div></body></html>`,
		atcBody:      `{"success":true,"qtm_quote_item_ids":"4711","qtm_quote_item_qtys":2,"checkout_url":""}`,
		atcStatus:    http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/produkt/fc-bayern-test", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><head>
			<meta itemprop="sku" content="AUDI-FCB-777">
		</head><body>
			<form action="/checkout/cart/add/id/98765/" method="post"></form>
		</body></html>`)
	})
	mux.HandleFunc("/produkt/kaputt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p>nothing here</p></body></html>`)
	})
	mux.HandleFunc("/product/catalog_ajax/dates/id/98765/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `var ticket = {};
ticket.setAvailableDateTimes({"2026-03-01":[{"time":"14:00:00","qty_available":8,"traffic_light":1,"variations":["v1"]}]});
ticket.render();`)
	})
	mux.HandleFunc("/product/catalog_ajax/options/id/98765/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<table><tr class="table-row" id="option-row-5566"><td>Standard</td></tr></table>`)
	})
	mux.HandleFunc("/checkout/ajaxcart/ajaxadd/product/98765", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "frontend", Value: "sess-abc123", Path: "/"})
		w.WriteHeader(shop.atcStatus)
		io.WriteString(w, shop.atcBody)
	})
	mux.HandleFunc("/checkout/cart", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, shop.checkoutBody)
	})

	shop.Server = httptest.NewServer(mux)
	t.Cleanup(shop.Close)
	return shop
}

func newTestClient(shop *shopServer) *Client {
	return NewClient(Config{
		BaseURL:            shop.URL,
		StoreCode:          "wl_de",
		RequestTimeout:     5 * time.Second,
		PositiveIndicators: []string{"Zusammenfassung", "Zwischensumme"},
		NegativeIndicators: []string{"Warenkorb ist leer", "ausverkauft"},
	}, newTestLogger())
}

func TestExtractProductIdentifiers(t *testing.T) {
	shop := newShopServer(t)
	client := newTestClient(shop)
	defer client.Close()

	eventID, ticketID, err := client.ExtractProductIdentifiers(context.Background(), shop.URL+"/produkt/fc-bayern-test")
	if err != nil {
		t.Fatalf("ExtractProductIdentifiers() failed: %v", err)
	}
	if eventID != "98765" {
		t.Errorf("Expected event id 98765, got %q", eventID)
	}
	if ticketID != "777" {
		t.Errorf("Expected ticket id 777, got %q", ticketID)
	}
}

func TestExtractProductIdentifiers_Missing(t *testing.T) {
	shop := newShopServer(t)
	client := newTestClient(shop)
	defer client.Close()

	_, _, err := client.ExtractProductIdentifiers(context.Background(), shop.URL+"/produkt/kaputt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFetchAvailability(t *testing.T) {
	shop := newShopServer(t)
	client := newTestClient(shop)
	defer client.Close()

	snap, err := client.FetchAvailability(context.Background(), "98765", "777")
	if err != nil {
		t.Fatalf("FetchAvailability() failed: %v", err)
	}

	slots, ok := snap["2026-03-01"]
	if !ok || len(slots) != 1 {
		t.Fatalf("Expected one slot for 2026-03-01, got %v", snap)
	}
	if slots[0].QtyAvailable != 8 || slots[0].Time != "14:00:00" {
		t.Errorf("Unexpected slot: %+v", slots[0])
	}
	if snap.TotalAvailable() != 8 {
		t.Errorf("Expected 8 available, got %d", snap.TotalAvailable())
	}
}

func TestResolveOptionToken(t *testing.T) {
	shop := newShopServer(t)
	client := newTestClient(shop)
	defer client.Close()

	token, err := client.ResolveOptionToken(context.Background(), "98765", "v1", "2026-03-01", "14:00:00")
	if err != nil {
		t.Fatalf("ResolveOptionToken() failed: %v", err)
	}
	if token != "5566" {
		t.Errorf("Expected token 5566, got %q", token)
	}
}

func TestAddToCart_Verified(t *testing.T) {
	shop := newShopServer(t)
	client := newTestClient(shop)
	defer client.Close()

	result := client.AddToCart(context.Background(), "98765", "2026-03-01", "14:00", "v1", "5566", 2, shop.URL+"/produkt/fc-bayern-test")
	if result.Status != CartAdded {
		t.Fatalf("Expected CartAdded, got %v (reason: %s)", result.Status, result.Reason)
	}
	if result.Cookie == nil || result.Cookie.Name != "frontend" || result.Cookie.Value != "sess-abc123" {
		t.Errorf("Expected frontend session cookie, got %+v", result.Cookie)
	}
}

func TestAddToCart_PhantomCart(t *testing.T) {
	shop := newShopServer(t)
	// Vendor says success, checkout page disagrees.
	shop.checkoutBody = `<html><body><p>Dein Warenkorb ist leer.</p></body></html>`
	client := newTestClient(shop)
	defer client.Close()

	result := client.AddToCart(context.Background(), "98765", "2026-03-01", "14:00", "v1", "5566", 2, shop.URL+"/produkt/fc-bayern-test")
	if result.Status != CartRejected {
		t.Fatalf("Expected CartRejected for phantom cart, got %v", result.Status)
	}
}

func TestAddToCart_UnclearCheckoutIsInvalid(t *testing.T) {
	shop := newShopServer(t)
	shop.checkoutBody = `<html><body><p>irgendwas anderes</p></body></html>`
	client := newTestClient(shop)
	defer client.Close()

	result := client.AddToCart(context.Background(), "98765", "2026-03-01", "14:00", "v1", "5566", 2, shop.URL+"/produkt/fc-bayern-test")
	if result.Status != CartRejected {
		t.Fatalf("Expected CartRejected for unclear checkout page, got %v", result.Status)
	}
}

func TestAddToCart_VendorRejection(t *testing.T) {
	shop := newShopServer(t)
	shop.atcBody = `{"success":false,"messages":[{"text":"Nicht genügend Tickets verfügbar"}]}`
	client := newTestClient(shop)
	defer client.Close()

	result := client.AddToCart(context.Background(), "98765", "2026-03-01", "14:00", "v1", "5566", 2, shop.URL+"/produkt/fc-bayern-test")
	if result.Status != CartRejected {
		t.Fatalf("Expected CartRejected, got %v", result.Status)
	}
	if result.Reason != "Nicht genügend Tickets verfügbar" {
		t.Errorf("Expected vendor message as reason, got %q", result.Reason)
	}
}

func TestAddToCart_SuccessWithoutQuoteItems(t *testing.T) {
	shop := newShopServer(t)
	shop.atcBody = `{"success":true,"qtm_quote_item_ids":"","qtm_quote_item_qtys":0}`
	client := newTestClient(shop)
	defer client.Close()

	result := client.AddToCart(context.Background(), "98765", "2026-03-01", "14:00", "v1", "5566", 2, shop.URL+"/produkt/fc-bayern-test")
	if result.Status != CartRejected {
		t.Fatalf("Expected CartRejected when no quote items reserved, got %v", result.Status)
	}
}

func TestAddToCart_TransportError(t *testing.T) {
	shop := newShopServer(t)
	shop.atcStatus = http.StatusServiceUnavailable
	client := newTestClient(shop)
	defer client.Close()

	result := client.AddToCart(context.Background(), "98765", "2026-03-01", "14:00", "v1", "5566", 2, shop.URL+"/produkt/fc-bayern-test")
	if result.Status != CartError {
		t.Fatalf("Expected CartError on HTTP 503, got %v", result.Status)
	}
}
