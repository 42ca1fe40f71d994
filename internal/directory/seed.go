package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"examflow/pkg/domain"
)

// LoadSeed decodes a JSON array of users and checks each entry.
func LoadSeed(r io.Reader) ([]User, error) {
	var users []User
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode directory seed: %w", err)
	}
	for i, u := range users {
		if u.ID.IsNil() || u.ClinicID.IsNil() {
			return nil, fmt.Errorf("directory seed entry %d: id and clinicId are required", i)
		}
		if strings.TrimSpace(u.Name) == "" {
			return nil, fmt.Errorf("directory seed entry %d: name is required", i)
		}
		if _, err := domain.ParseRole(string(u.Role)); err != nil {
			return nil, fmt.Errorf("directory seed entry %d: %w", i, err)
		}
	}
	return users, nil
}
