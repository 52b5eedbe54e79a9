package db

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "ux_network_edges_pair" (SQLSTATE 23505)`), true},
		{errors.New("Error 1062 (23000): Duplicate entry"), true},
		{errors.New("UNIQUE constraint failed: network_edges.org_id"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsDuplicateKeyErr(tc.err); got != tc.want {
			t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsSerializationErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)"), true},
		{errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), true},
		{errors.New("Error 1213 (40001): Deadlock found when trying to get lock"), true},
		{errors.New("Error 1205 (HY000): Lock wait timeout exceeded"), true},
		{gorm.ErrDuplicatedKey, false},
		{errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"), false},
	}
	for _, tc := range cases {
		if got := IsSerializationErr(tc.err); got != tc.want {
			t.Fatalf("IsSerializationErr(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
