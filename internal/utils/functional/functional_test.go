package functional

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	numbers := []int{1, 2, 3}

	strings := Map(numbers, strconv.Itoa)

	assert.Equal(t, []string{"1", "2", "3"}, strings)
}

func TestMapEmptySlice(t *testing.T) {
	assert.Equal(t, []string{}, Map([]int{}, strconv.Itoa))
	assert.Equal(t, []string{}, Map(nil, strconv.Itoa))
}
