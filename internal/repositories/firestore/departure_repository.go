package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/roamline/api/internal/domain"
	pfirestore "github.com/roamline/api/internal/platform/firestore"
)

const departuresCollection = "departures"

// DepartureRepository loads slot inventory snapshots for fixed-departure
// packages.
type DepartureRepository struct {
	provider *pfirestore.Provider
}

// NewDepartureRepository constructs a Firestore-backed departure repository.
func NewDepartureRepository(provider *pfirestore.Provider) (*DepartureRepository, error) {
	if provider == nil {
		return nil, errors.New("departure repository: firestore provider is required")
	}
	return &DepartureRepository{provider: provider}, nil
}

// FindByID returns the departure's inventory snapshot.
func (r *DepartureRepository) FindByID(ctx context.Context, departureID string) (domain.DepartureInventory, error) {
	if r == nil || r.provider == nil {
		return domain.DepartureInventory{}, errors.New("departure repository not initialised")
	}
	departureID = strings.TrimSpace(departureID)
	if departureID == "" {
		return domain.DepartureInventory{}, errors.New("departure repository: departure id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.DepartureInventory{}, err
	}

	snap, err := client.Collection(departuresCollection).Doc(departureID).Get(ctx)
	if err != nil {
		return domain.DepartureInventory{}, pfirestore.WrapError("departures.get", err)
	}

	var doc departureDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.DepartureInventory{}, fmt.Errorf("departure repository: decode document %s: %w", snap.Ref.ID, err)
	}
	return decodeDepartureDocument(snap.Ref.ID, doc), nil
}

type departureDocument struct {
	DepartureDate    time.Time        `firestore:"departureDate"`
	AvailableSlots   int              `firestore:"availableSlots"`
	BookedSlots      int              `firestore:"bookedSlots"`
	Status           string           `firestore:"status"`
	HasCustomPricing bool             `firestore:"hasCustomPricing"`
	TierPrices       map[string]int64 `firestore:"tierPrices,omitempty"`
}

func decodeDepartureDocument(departureID string, doc departureDocument) domain.DepartureInventory {
	var tierPrices map[domain.TierType]int64
	if len(doc.TierPrices) > 0 {
		tierPrices = make(map[domain.TierType]int64, len(doc.TierPrices))
		for tierType, price := range doc.TierPrices {
			tierPrices[domain.TierType(strings.ToLower(strings.TrimSpace(tierType)))] = price
		}
	}

	return domain.DepartureInventory{
		ID:               departureID,
		DepartureDate:    doc.DepartureDate.UTC(),
		AvailableSlots:   doc.AvailableSlots,
		BookedSlots:      doc.BookedSlots,
		Status:           domain.DepartureStatus(strings.ToLower(strings.TrimSpace(doc.Status))),
		HasCustomPricing: doc.HasCustomPricing,
		TierPrices:       tierPrices,
	}
}
