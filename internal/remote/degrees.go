package remote

import (
	"fmt"
	"sync"
)

// DegreeOption is one entry of the rotation picker.
type DegreeOption struct {
	Label int
	Value int
}

// DegreeOptions is the fixed picker list. Labels above 20 all map to 180.
var DegreeOptions = []DegreeOption{
	{Label: 10, Value: 10},
	{Label: 15, Value: 30},
	{Label: 20, Value: 60},
	{Label: 30, Value: 180},
	{Label: 40, Value: 180},
	{Label: 45, Value: 180},
	{Label: 60, Value: 180},
	{Label: 90, Value: 180},
	{Label: 180, Value: 180},
}

// Selection holds the chosen degrees value. It is local state only and is
// never sent to the device.
type Selection struct {
	mu    sync.Mutex
	value int
}

// NewSelection starts at the first option.
func NewSelection() *Selection {
	return &Selection{value: DegreeOptions[0].Value}
}

// Select picks the option with the given label.
func (s *Selection) Select(label int) error {
	for _, opt := range DegreeOptions {
		if opt.Label == label {
			s.mu.Lock()
			s.value = opt.Value
			s.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("remote: no degree option labeled %d", label)
}

// Value returns the selected value.
func (s *Selection) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
