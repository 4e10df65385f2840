package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

var templateNames = map[domain.NotificationKind]string{
	domain.NotificationOrderPlaced:          "order_placed.html",
	domain.NotificationPaymentProofUploaded: "payment_proof.html",
	domain.NotificationShipmentCreated:      "shipment_created.html",
	domain.NotificationTrackingUpdated:      "tracking_updated.html",
}

func subject(intent domain.NotificationIntent) string {
	switch intent.Kind {
	case domain.NotificationOrderPlaced:
		return fmt.Sprintf("New order from %s (%s %s)", intent.CustomerName, intent.TotalAmount.StringFixed(2), intent.Currency)
	case domain.NotificationPaymentProofUploaded:
		return "Payment proof uploaded for order " + intent.OrderID
	case domain.NotificationShipmentCreated:
		return fmt.Sprintf("Your Order has been shipped! (Tracking: %s)", intent.TrackingNumber)
	case domain.NotificationTrackingUpdated:
		return fmt.Sprintf("Shipment update for %s", intent.TrackingNumber)
	}
	return ""
}

func render(intent domain.NotificationIntent) (string, error) {
	name, ok := templateNames[intent.Kind]
	if !ok {
		return "", fmt.Errorf("no template for notification kind %q", intent.Kind)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, intent); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
