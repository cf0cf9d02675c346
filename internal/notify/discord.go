// Package notify pushes best-effort Discord webhook notifications. Nothing
// in the engine depends on delivery; every failure is logged and dropped.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/bot"
)

const embedColorGreen = 65280

// Discord sends webhook notifications for availability and cart events
type Discord struct {
	webhookURL    string
	publicBaseURL string
	http          *http.Client
	logger        *logrus.Entry
}

// NewDiscord creates a Discord notifier. An empty webhook URL disables it.
func NewDiscord(webhookURL, publicBaseURL string, logger *logrus.Entry) *Discord {
	return &Discord{
		webhookURL:    webhookURL,
		publicBaseURL: publicBaseURL,
		http:          &http.Client{Timeout: 10 * time.Second},
		logger:        logger.WithField("component", "discord-notify"),
	}
}

type embed struct {
	Title       string       `json:"title"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type webhookMessage struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

// NotifyAvailability announces detected availability
func (d *Discord) NotifyAvailability(snap bot.Snapshot, productURL string) {
	if d.webhookURL == "" {
		return
	}

	dates := make([]string, 0, len(snap))
	for date := range snap {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if len(dates) > 10 {
		dates = dates[:10]
	}

	description := ""
	entries := 0
	for _, date := range dates {
		for _, slot := range snap[date] {
			status := "🟢 AVAILABLE"
			if slot.TrafficLight == bot.TrafficLightSoldOut {
				status = "🔴 SOLD OUT"
			}
			description += fmt.Sprintf("%s %s - %d %s\n", date, slot.Time, slot.QtyAvailable, status)
			entries++
		}
	}
	if entries == 0 {
		return
	}

	d.send(webhookMessage{
		Username: "Ticket Bot",
		Embeds: []embed{{
			Title:       "🎫 Ticket Availability Update",
			Color:       embedColorGreen,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			URL:         productURL,
			Description: description,
		}},
	})
}

// NotifyCartSecured announces a secured cart with its checkout link
func (d *Discord) NotifyCartSecured(productURL string, cookie bot.Cookie, quantity int, elapsed time.Duration, cartToken string) {
	if d.webhookURL == "" {
		return
	}

	checkoutLink := fmt.Sprintf("%s/checkout/%s", d.publicBaseURL, cartToken)
	description := fmt.Sprintf(
		"**Product**\n%s\n\n**Quantity**\n%d\n\n**Speed**\n%.2fs\n\n**Cookie**\n`%s`\n\n**📱 Mobile Checkout**\n[Click here to checkout](%s)",
		productURL, quantity, elapsed.Seconds(), cookie.Name, checkoutLink)

	footer := cartToken
	if len(footer) > 8 {
		footer = footer[:8] + "..."
	}

	d.send(webhookMessage{
		Username: "Ticket Bot",
		Embeds: []embed{{
			Title:       "✅ Added to Cart!",
			Color:       embedColorGreen,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Description: description,
			Footer:      &embedFooter{Text: "Token: " + footer},
		}},
	})
}

func (d *Discord) send(msg webhookMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		d.logger.Errorf("Failed to marshal webhook message: %v", err)
		return
	}

	resp, err := d.http.Post(d.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		d.logger.Errorf("Discord webhook error: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		d.logger.Errorf("Discord webhook failed with status %d", resp.StatusCode)
	}
}
