package service

import (
	"bytes"
	"fmt"
	"html/template"

	"storefront/pkg/order/domain/model"
)

type notificationTemplate struct {
	subject string
	name    string
	body    *template.Template
}

var notificationTemplates = map[model.NotificationType]notificationTemplate{
	model.NotificationProcessing: {
		subject: "Order processing",
		name:    "order_processing",
		body: template.Must(template.New("order_processing").Parse(
			`<p>Hi {{.Name}},</p><p>Your order {{.OrderID}} is being processed. Estimated dispatch: {{.ETA}}.</p>`)),
	},
	model.NotificationShipped: {
		subject: "Order shipped",
		name:    "order_shipped",
		body: template.Must(template.New("order_shipped").Parse(
			`<p>Hi {{.Name}},</p><p>Your order {{.OrderID}} has shipped.{{if .TrackingCode}} Tracking code: <a href="{{.TrackingURL}}">{{.TrackingCode}}</a>.{{end}}</p>`)),
	},
	model.NotificationDelivered: {
		subject: "Order delivered",
		name:    "order_delivered",
		body: template.Must(template.New("order_delivered").Parse(
			`<p>Hi {{.Name}},</p><p>Your order {{.OrderID}} has been delivered.</p>`)),
	},
	model.NotificationCancelled: {
		subject: "Order cancelled",
		name:    "order_cancelled",
		body: template.Must(template.New("order_cancelled").Parse(
			`<p>Hi {{.Name}},</p><p>Your order {{.OrderID}} has been cancelled.</p>`)),
	},
}

type templateData struct {
	Name         string
	OrderID      string
	ETA          string
	TrackingCode string
	TrackingURL  string
}

func renderNotification(typ model.NotificationType, to string, data templateData) (model.Message, error) {
	tmpl, ok := notificationTemplates[typ]
	if !ok {
		return model.Message{}, fmt.Errorf("no template for notification type %q", typ)
	}
	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, data); err != nil {
		return model.Message{}, err
	}
	return model.Message{To: to, Subject: tmpl.subject, Template: tmpl.name, Body: body.String()}, nil
}

func recordMessage(typ model.NotificationType, trackingCode string) string {
	switch typ {
	case model.NotificationProcessing:
		return "Order is processing"
	case model.NotificationShipped:
		return "Tracking " + trackingCode
	case model.NotificationDelivered:
		return "Order delivered"
	case model.NotificationCancelled:
		return "Order cancelled"
	}
	return string(typ)
}
