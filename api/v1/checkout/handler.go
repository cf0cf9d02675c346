// Package checkout serves the public cart handoff page. The routes here
// carry no auth middleware: the session token in the URL is the
// capability.
package checkout

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go_ticketbot/internal/model"
	"go_ticketbot/internal/store"
)

// Handler holds checkout page dependencies
type Handler struct {
	store         *store.Store
	vendorBaseURL string
}

// NewHandler creates a checkout handler
func NewHandler(st *store.Store, vendorBaseURL string) *Handler {
	return &Handler{store: st, vendorBaseURL: vendorBaseURL}
}

// Page renders the countdown page for a secured cart. Unknown tokens get
// 404, lapsed holds 410. The first successful view stamps used_at.
func (h *Handler) Page(c *gin.Context) {
	token := c.Param("token")

	sess, err := h.store.CartSessionByToken(token)
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if sess == nil {
		renderError(c, http.StatusNotFound, "Session nicht gefunden",
			"Der Link ist ungültig oder abgelaufen.")
		return
	}

	now := time.Now().UTC()
	if sess.Expired(now) {
		renderError(c, http.StatusGone, "Session abgelaufen",
			"Die Warenkorb-Session ist nicht mehr gültig.")
		return
	}

	if sess.UsedAt == nil {
		if err := h.store.MarkCartSessionUsed(sess.ID); err != nil {
			// A missing used_at stamp is not worth failing the handoff.
			_ = err
		}
	}

	remaining := int(sess.ExpiresAt.Sub(now).Seconds())
	checkoutURL := sess.CheckoutURL
	if checkoutURL == "" {
		checkoutURL = h.vendorBaseURL + "/checkout/cart"
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := checkoutPage.Execute(c.Writer, checkoutView{
		Session:          sess,
		RemainingSeconds: remaining,
		RemainingMin:     remaining / 60,
		RemainingSec:     remaining % 60,
		CheckoutURL:      checkoutURL,
		ShortToken:       shortToken(sess.Token),
	}); err != nil {
		_ = err
	}
}

func renderError(c *gin.Context, status int, title, detail string) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	_ = errorPage.Execute(c.Writer, map[string]string{"Title": title, "Detail": detail})
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8] + "..."
	}
	return token
}

type checkoutView struct {
	Session          *model.CartSession
	RemainingSeconds int
	RemainingMin     int
	RemainingSec     int
	CheckoutURL      string
	ShortToken       string
}

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, sans-serif; padding: 20px; text-align: center; background: #1a1a2e; color: white; }
.error { color: #ff6b6b; font-size: 1.5em; margin-top: 50px; }
</style>
</head>
<body>
<div class="error">{{.Title}}</div>
<p>{{.Detail}}</p>
</body>
</html>`))

var checkoutPage = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Checkout - Tickets</title>
<style>
* { box-sizing: border-box; }
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 20px; background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%); color: white; min-height: 100vh; }
.container { max-width: 500px; margin: 0 auto; }
.card { background: rgba(255,255,255,0.1); border-radius: 16px; padding: 24px; margin-bottom: 20px; }
.success-badge { background: #00c853; color: white; padding: 8px 16px; border-radius: 20px; font-weight: 600; display: inline-block; margin-bottom: 16px; }
h1 { margin: 0 0 8px 0; font-size: 1.5em; }
.timer { font-size: 2.5em; font-weight: bold; color: #ffd700; text-align: center; margin: 20px 0; }
.timer-label { text-align: center; color: #aaa; font-size: 0.9em; }
.info-row { display: flex; justify-content: space-between; padding: 12px 0; border-bottom: 1px solid rgba(255,255,255,0.1); }
.info-label { color: #aaa; }
.info-value { font-weight: 600; word-break: break-all; }
.checkout-btn { display: block; width: 100%; padding: 18px; background: linear-gradient(135deg, #00c853 0%, #00e676 100%); color: white; text-decoration: none; text-align: center; font-size: 1.2em; font-weight: bold; border-radius: 12px; margin-top: 20px; }
.warning { background: rgba(255,193,7,0.2); border: 1px solid #ffc107; border-radius: 8px; padding: 12px; margin-top: 20px; font-size: 0.9em; }
</style>
</head>
<body>
<div class="container">
  <div class="card">
    <span class="success-badge">Im Warenkorb</span>
    <h1>Tickets</h1>
    <p style="color: #aaa; margin: 0;">Menge: {{.Session.Quantity}}</p>
  </div>
  <div class="card">
    <div class="timer-label">Verbleibende Zeit</div>
    <div class="timer" id="timer">{{printf "%02d:%02d" .RemainingMin .RemainingSec}}</div>
    <div class="timer-label">Minuten : Sekunden</div>
  </div>
  <div class="card">
    <div class="info-row">
      <span class="info-label">Cart Speed</span>
      <span class="info-value">{{printf "%.2fs" .Session.TotalTime}}</span>
    </div>
    <div class="info-row">
      <span class="info-label">Session</span>
      <span class="info-value">{{.ShortToken}}</span>
    </div>
    <div class="info-row">
      <span class="info-label">Cookie</span>
      <span class="info-value">{{.Session.CookieName}}={{.Session.CookieValue}}</span>
    </div>
  </div>
  <a href="{{.CheckoutURL}}" class="checkout-btn">Jetzt zur Kasse</a>
  <div class="warning">
    <strong>Hinweis:</strong> Setze das Cookie im Browser und schließe den
    Kauf ab, bevor die Zeit abläuft!
  </div>
</div>
<script>
let remaining = {{.RemainingSeconds}};
const timerEl = document.getElementById('timer');
setInterval(() => {
  remaining--;
  if (remaining <= 0) { timerEl.textContent = '00:00'; timerEl.style.color = '#ff6b6b'; return; }
  const min = Math.floor(remaining / 60);
  const sec = remaining % 60;
  timerEl.textContent = String(min).padStart(2, '0') + ':' + String(sec).padStart(2, '0');
  if (remaining < 120) { timerEl.style.color = '#ff6b6b'; }
}, 1000);
</script>
</body>
</html>`))
