package entity

import "fmt"

// MarkerCount число переключателей-отметок сессии.
const MarkerCount = 3

// Markers состояние переключателей, которые оператор выставляет во время поездки.
type Markers [MarkerCount]int

// Set меняет отметку по номеру 1..MarkerCount.
func (m *Markers) Set(n, value int) error {
	if n < 1 || n > MarkerCount {
		return fmt.Errorf("marker %d out of range 1..%d", n, MarkerCount)
	}
	m[n-1] = value
	return nil
}
