// Package booking проверяет пересечение периодов проживания с существующими бронированиями.
package booking

import (
	"github.com/google/uuid"

	"github.com/mmeshcher/rental-billing/internal/model"
)

// Conflicts сообщает, пересекается ли период candidate с периодом existing.
// Периоды, касающиеся друг друга границами, не пересекаются.
func Conflicts(candidate, existing model.StayPeriod) bool {
	startInside := !candidate.CheckIn.Before(existing.CheckIn) && candidate.CheckIn.Before(existing.CheckOut)
	endInside := candidate.CheckOut.After(existing.CheckIn) && !candidate.CheckOut.After(existing.CheckOut)
	contains := !candidate.CheckIn.After(existing.CheckIn) && !candidate.CheckOut.Before(existing.CheckOut)

	return startInside || endInside || contains
}

// IsAvailable сообщает, свободен ли дом houseID на период candidate.
// Отменённые договоры, договоры других домов и договор exclude в проверке не участвуют.
func IsAvailable(houseID string, candidate model.StayPeriod, sales []model.Sale, exclude uuid.UUID) bool {
	for _, s := range sales {
		if s.HouseID != houseID || s.Status == model.SaleStatusCancelled {
			continue
		}
		if exclude != uuid.Nil && s.ID == exclude {
			continue
		}
		if Conflicts(candidate, s.Stay) {
			return false
		}
	}
	return true
}
