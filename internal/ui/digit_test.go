package ui

import "testing"

func TestTimeFieldIncrementSaturates(t *testing.T) {
	v := uint32(MaxTimeFieldMS)
	v = IncrementTimeField(v, 6)
	if v != MaxTimeFieldMS {
		t.Fatalf("got %d, want saturation at %d", v, MaxTimeFieldMS)
	}
}

func TestTimeFieldDecrementFloors(t *testing.T) {
	v := IncrementTimeField(0, 0)
	v = DecrementTimeField(v, 1) // bigger decrement than the value held
	if v != 0 {
		t.Fatalf("got %d, want floor at 0", v)
	}
}

func TestTimeFieldCursorPlaceValues(t *testing.T) {
	v := IncrementTimeField(0, 3) // minutes place
	if v != 60_000 {
		t.Fatalf("got %d, want 60000 (1 minute)", v)
	}
}

func TestIntFieldSaturatesAtDigitLength(t *testing.T) {
	v := IncrementIntField(9999, 0, 4)
	if v != 9999 {
		t.Fatalf("got %d, want saturation at 9999 for a 4-digit field", v)
	}
}

func TestIntFieldFloorsAtMin(t *testing.T) {
	v := DecrementIntField(1, 0, 4, 1)
	if v != 1 {
		t.Fatalf("got %d, want floor at min=1", v)
	}
}

func TestCursorWrapsBothDirections(t *testing.T) {
	if MoveCursorRight(6, 7) != 0 {
		t.Fatal("expected right from the last digit to wrap to 0")
	}
	if MoveCursorLeft(0, 7) != 6 {
		t.Fatal("expected left from digit 0 to wrap to the last digit")
	}
}
