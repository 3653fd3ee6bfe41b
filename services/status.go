package services

import (
	"fmt"

	"pizzaria-telegram/catalog"
	"pizzaria-telegram/models"
)

// ValidStatusTransition enforces the kitchen flow
// pendente -> preparando -> saiu_entrega -> entregue. Any non-final status may
// be cancelled; entregue and cancelado are final.
func ValidStatusTransition(from, to string) bool {
	if !catalog.ValidStatus(from) || !catalog.ValidStatus(to) || from == to {
		return false
	}
	switch from {
	case catalog.StatusDelivered, catalog.StatusCancelled:
		return false
	}
	if to == catalog.StatusCancelled {
		return true
	}
	switch from {
	case catalog.StatusPending:
		return to == catalog.StatusPreparing
	case catalog.StatusPreparing:
		return to == catalog.StatusOnTheWay
	case catalog.StatusOnTheWay:
		return to == catalog.StatusDelivered
	}
	return false
}

// CustomerMessageForOrderStatus is the text sent to the customer after an admin status change.
func CustomerMessageForOrderStatus(o *models.Order, status string) string {
	switch status {
	case catalog.StatusPreparing:
		return fmt.Sprintf("👨‍🍳 Seu pedido %s está sendo preparado!", o.Code)
	case catalog.StatusOnTheWay:
		return fmt.Sprintf("🛵 Seu pedido %s saiu para entrega! Total a pagar: %s", o.Code, FormatBRL(o.Total()))
	case catalog.StatusDelivered:
		return fmt.Sprintf("✅ Pedido %s entregue. Bom apetite! 🍕", o.Code)
	case catalog.StatusCancelled:
		return fmt.Sprintf("❌ Seu pedido %s foi cancelado. Em caso de dúvidas, fale conosco.", o.Code)
	default:
		return fmt.Sprintf("Pedido %s: %s", o.Code, catalog.StatusLabel(status))
	}
}
