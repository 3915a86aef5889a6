package records

import (
	"context"

	"github.com/ziadkadry99/crm-agent/internal/db"
)

// DefaultHCPs are the demo professionals inserted by Seed.
var DefaultHCPs = []HCPCreate{
	{Name: "Dr. Meera Patel", Title: "Dr.", Speciality: "Cardiology", Organisation: "City Hospital"},
	{Name: "Dr. Rohan Sharma", Title: "Dr.", Speciality: "Cardiology", Organisation: "City Hospital"},
	{Name: "Dr. Anita Rao", Title: "Dr.", Speciality: "Cardiology", Organisation: "City Hospital"},
}

// Seed inserts each HCP whose name is not already present. It returns the
// HCPs that were created.
func (s *Store) Seed(ctx context.Context, hcps []HCPCreate) ([]HCP, error) {
	existing, err := s.ListHCPs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, h := range existing {
		seen[db.FoldName(h.Name)] = true
	}

	var created []HCP
	for _, in := range hcps {
		if seen[db.FoldName(in.Name)] {
			continue
		}
		h, err := s.CreateHCP(ctx, in)
		if err != nil {
			return created, err
		}
		seen[db.FoldName(h.Name)] = true
		created = append(created, *h)
	}
	return created, nil
}
