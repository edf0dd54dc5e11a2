package postgres

import (
	"testing"

	"github.com/borauni/ride-dispatch/pkg/uuid"
)

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch v := d.(type) {
		case *uuid.UUID:
			*v = r.values[i].(uuid.UUID)
		case *float64:
			*v = r.values[i].(float64)
		}
	}
	return nil
}

func TestScanOnlineDriver(t *testing.T) {
	driverID, err := uuid.New()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}

	d, err := scanOnlineDriver(fakeRow{values: []any{driverID, 43.24, 76.89}})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if d.DriverID != driverID {
		t.Fatal("driver id lost")
	}
	if d.Location == nil {
		t.Fatal("location must be populated")
	}
	if d.Location.Latitude != 43.24 || d.Location.Longitude != 76.89 {
		t.Fatalf("coordinates lost: %+v", *d.Location)
	}
}
