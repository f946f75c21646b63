package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "timetable:result:abc", Key("result", "abc"))
	assert.Equal(t, "timetable:result:*", Key("result", "*"))
}
