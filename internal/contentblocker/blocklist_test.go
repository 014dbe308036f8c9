package contentblocker_test

import (
	"testing"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocklistType(t *testing.T) {
	testCases := []struct {
		name         string
		wantID       string
		wantModes    []contentblocker.BlockingMode
		typ          contentblocker.BlocklistType
		wantAggrMode contentblocker.BlockingMode
		wantStdMode  contentblocker.BlockingMode
	}{{
		name:         "block_ads",
		wantID:       "stored-type-block-ads",
		wantModes:    []contentblocker.BlockingMode{contentblocker.ModeStandard, contentblocker.ModeAggressive},
		typ:          contentblocker.Generic(contentblocker.CategoryBlockAds),
		wantAggrMode: contentblocker.ModeAggressive,
		wantStdMode:  contentblocker.ModeStandard,
	}, {
		name:         "mixed_content",
		wantID:       "stored-type-mixed-content-upgrade",
		wantModes:    []contentblocker.BlockingMode{contentblocker.ModeGeneral},
		typ:          contentblocker.Generic(contentblocker.CategoryUpgradeMixedContent),
		wantAggrMode: contentblocker.ModeGeneral,
		wantStdMode:  contentblocker.ModeGeneral,
	}, {
		name:         "filter_list_always_aggressive",
		wantID:       "filter-list-abc",
		wantModes:    []contentblocker.BlockingMode{contentblocker.ModeAggressive},
		typ:          contentblocker.FilterList("abc", true),
		wantAggrMode: contentblocker.ModeAggressive,
		wantStdMode:  contentblocker.ModeAggressive,
	}, {
		name:         "filter_list",
		wantID:       "filter-list-abc",
		wantModes:    []contentblocker.BlockingMode{contentblocker.ModeStandard, contentblocker.ModeAggressive},
		typ:          contentblocker.FilterList("abc", false),
		wantAggrMode: contentblocker.ModeAggressive,
		wantStdMode:  contentblocker.ModeStandard,
	}, {
		name:         "custom",
		wantID:       "filter-list-url-1234",
		wantModes:    []contentblocker.BlockingMode{contentblocker.ModeGeneral},
		typ:          contentblocker.CustomFilterList("1234"),
		wantAggrMode: contentblocker.ModeGeneral,
		wantStdMode:  contentblocker.ModeGeneral,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantID, tc.typ.Identifier())
			assert.Equal(t, tc.wantModes, tc.typ.AllowedModes())
			assert.Equal(t, tc.wantAggrMode, tc.typ.Mode(true))
			assert.Equal(t, tc.wantStdMode, tc.typ.Mode(false))
		})
	}
}

func TestBlocklistType_MakeIdentifier(t *testing.T) {
	typ := contentblocker.Generic(contentblocker.CategoryBlockAds)

	assert.Equal(t, "stored-type-block-ads", typ.MakeIdentifier(contentblocker.ModeGeneral))
	assert.Equal(t, "stored-type-block-ads-standard", typ.MakeIdentifier(contentblocker.ModeStandard))
	assert.Equal(t, "stored-type-block-ads-aggressive", typ.MakeIdentifier(contentblocker.ModeAggressive))

	assert.Panics(t, func() {
		_ = typ.MakeIdentifier(0)
	})
}

func TestParseGenericCategory(t *testing.T) {
	for _, c := range contentblocker.AllGenericCategories {
		got, err := contentblocker.ParseGenericCategory(c.BundledFileName())
		require.NoError(t, err)

		assert.Equal(t, c, got)
	}

	_, err := contentblocker.ParseGenericCategory("block-everything")
	assert.Error(t, err)
}
