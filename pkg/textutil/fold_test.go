package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "nguyen duc an", Fold("  Nguyễn Đức An "))
	assert.Equal(t, "to toan - tin", Fold("Tổ Toán - Tin"))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Đề cương ôn tập CKI", "de cuong"))
	assert.True(t, ContainsFold("Trần Thị Hà", "THI HA"))
	assert.True(t, ContainsFold("anything", ""))
	assert.False(t, ContainsFold("Lê Văn Bình", "minh"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "bang-diem-thi-dua-hki", Slug("Bảng điểm thi đua (HKI)", 0))
	assert.Equal(t, "item", Slug("!!!", 0))
	assert.Equal(t, "abc", Slug("abc-def", 4))
}
