package mentors

import (
	"errors"
	"strings"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
)

// Mapper converts backend DTOs into mentoring domain values.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

var (
	errMissingOrderID = errors.New("order has no uuid")
	errMissingPlanID  = errors.New("weekly plan has no uuid")
)

// OrderFromDTO validates the DTO and builds the domain order.
// A missing student or profile is kept as nil/zero so the caller decides.
func (m *Mapper) OrderFromDTO(dto *OrderDTO) (*mentoring.Order, error) {
	if dto == nil || strings.TrimSpace(dto.UUID) == "" {
		return nil, errMissingOrderID
	}

	order := &mentoring.Order{
		ID:     dto.UUID,
		Active: dto.IsActive,
	}

	if dto.WeeklyPlan != nil && dto.WeeklyPlan.UUID != "" {
		order.Plan = &mentoring.PlanRef{ID: dto.WeeklyPlan.UUID}
	}

	if dto.Student != nil {
		order.Student = m.studentFromDTO(dto.Student)
	}

	return order, nil
}

// OrdersFromDTOs maps a listing, keeping backend order.
func (m *Mapper) OrdersFromDTOs(dtos []OrderDTO) ([]mentoring.Order, error) {
	orders := make([]mentoring.Order, 0, len(dtos))
	for i := range dtos {
		order, err := m.OrderFromDTO(&dtos[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (m *Mapper) studentFromDTO(dto *StudentDTO) *mentoring.Student {
	s := &mentoring.Student{ID: dto.UUID}

	if dto.Profile != nil {
		s.Profile = mentoring.Profile{
			TelegramHandle: strings.TrimSpace(dto.Profile.TelegramUsername),
			DvmnUsername:   strings.TrimSpace(dto.Profile.DvmnUsername),
		}
	}

	if len(dto.Notes) > 0 {
		s.Notes = make([]mentoring.Note, 0, len(dto.Notes))
		for _, n := range dto.Notes {
			s.Notes = append(s.Notes, mentoring.Note{
				ID:      n.UUID,
				Content: n.Content,
				Hidden:  n.IsHidden,
			})
		}
	}

	return s
}

// WeeklyPlanFromDTO builds the domain plan. An empty gist is left for the
// caller to reject.
func (m *Mapper) WeeklyPlanFromDTO(dto *WeeklyPlanDTO) (*mentoring.WeeklyPlan, error) {
	if dto == nil || dto.UUID == "" {
		return nil, errMissingPlanID
	}
	return &mentoring.WeeklyPlan{
		ID:     dto.UUID,
		Gist:   strings.TrimSpace(dto.GistURL),
		Status: dto.StatusFromMentor,
	}, nil
}
