// Tests for profile models
package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgeIsCalendarAware(t *testing.T) {
	dob := time.Date(1995, 6, 15, 0, 0, 0, 0, time.UTC)
	p := &UserProfile{DateOfBirth: &dob}

	beforeBirthday := time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)
	age := p.Age(beforeBirthday)
	require.NotNil(t, age)
	assert.Equal(t, 30, *age)

	onBirthday := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	age = p.Age(onBirthday)
	require.NotNil(t, age)
	assert.Equal(t, 31, *age)
}

func TestAgeUnknownWithoutDateOfBirth(t *testing.T) {
	p := &UserProfile{}
	assert.Nil(t, p.Age(time.Now()))
}

func TestDefaultCriteria(t *testing.T) {
	c := DefaultCriteria(42)

	assert.Equal(t, int64(42), c.UserID)
	assert.Equal(t, 3, c.BudgetImportance)
	assert.Equal(t, 3, c.LocationImportance)
	assert.Equal(t, 3, c.LifestyleImportance)
	assert.Equal(t, 3, c.ScheduleImportance)
	assert.Equal(t, 3, c.HabitsImportance)
	assert.Empty(t, c.DealBreakers)
	assert.False(t, c.StrictAgePreference)
	assert.False(t, c.StrictGenderPreference)
}

func TestStringListScan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["Brooklyn","Queens"]`)))
	assert.Equal(t, StringList{"Brooklyn", "Queens"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Nil(t, l)
}

func TestStringListValueNeverNull(t *testing.T) {
	var l StringList
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), v)
}
