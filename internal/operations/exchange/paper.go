package exchange

import (
	"context"
	"fmt"

	"EquityTradeBot/internal/models"

	"github.com/google/uuid"
)

// PaperSubmitter accepts every order without touching the broker. Used
// when the portfolio runs in paper mode.
type PaperSubmitter struct{}

func NewPaperSubmitter() *PaperSubmitter { return &PaperSubmitter{} }

func (s *PaperSubmitter) Submit(_ context.Context, order *models.Order) (string, error) {
	if order == nil {
		return "", fmt.Errorf("order cannot be nil")
	}
	return "paper-" + uuid.NewString(), nil
}
