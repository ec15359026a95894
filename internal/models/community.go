// internal/models/community.go
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Field holds a raw spreadsheet cell as text. Upstream rows mix numbers, booleans and
// free text in the same column, so parsing is left to the consumer of each field.
type Field string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	*f = Field(string(data))
	return nil
}

// String returns the trimmed text.
func (f Field) String() string {
	return strings.TrimSpace(string(f))
}

// IsEmpty reports whether the cell carries no value.
func (f Field) IsEmpty() bool {
	s := strings.ToLower(f.String())
	return s == "" || s == "nan" || s == "null" || s == "none"
}

// Float parses a currency-ish value ("$1,250.00"). ok is false when the cell is empty or
// not numeric.
func (f Field) Float() (float64, bool) {
	if f.IsEmpty() {
		return 0, false
	}
	s := strings.NewReplacer("$", "", ",", "").Replace(f.String())
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Community is one facility row that survived upstream eligibility filtering.
type Community struct {
	CommunityID       int            `json:"communityId"`
	Name              string         `json:"name,omitempty"`
	ServiceType       string         `json:"typeOfService"`
	MonthlyFee        Field          `json:"monthlyFee"`
	Deposit           Field          `json:"deposit"`
	MoveInFee         Field          `json:"moveInFee"`
	CommunityFee      Field          `json:"communityFeeOneTime"`
	PetFee            Field          `json:"petFee"`
	SecondPersonFee   Field          `json:"secondPersonFee"`
	WorkWithPlacement Field          `json:"workWithPlacement"`
	ContractRate      Field          `json:"contractRate"`
	EstWaitlist       string         `json:"estWaitlistLength"`
	ApartmentType     string         `json:"apartmentType"`
	Enhanced          Field          `json:"enhanced"`
	Enriched          Field          `json:"enriched"`
	ZIP               Field          `json:"zip"`
	MiscFees          string         `json:"mscFees,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// DisplayName falls back to a generated label when the row has no name.
func (c Community) DisplayName() string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return "Community " + strconv.Itoa(c.CommunityID)
}
