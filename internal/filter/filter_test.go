package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/streamscout/internal/models"
)

func sample() []*models.Channel {
	return []*models.Channel{
		{Name: "BBC News", Group: "News", URL: "http://a/bbc", Status: models.StatusOffline},
		{Name: "Cartoon", Group: "Kids", URL: "http://b/toon", Status: models.StatusOnline},
		{Name: "CNN", Group: "news", URL: "http://c/cnn", Status: models.StatusUnknown},
		{Name: "Movies", Group: "Film", URL: "http://d/NEWSREEL", Status: models.StatusOnline},
	}
}

func names(channels []*models.Channel) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = ch.Name
	}
	return out
}

func TestFilter(t *testing.T) {
	channels := sample()

	assert.Equal(t, []string{"BBC News", "CNN", "Movies"}, names(Filter(channels, "news")))
	assert.Equal(t, []string{"Cartoon"}, names(Filter(channels, "KIDS")))
	assert.Empty(t, Filter(channels, "nothing"))
	assert.Len(t, Filter(channels, ""), 4)
	assert.Len(t, Filter(channels, "   "), 4)
}

func TestFilter_DoesNotMutate(t *testing.T) {
	channels := sample()
	out := Filter(channels, "")
	out[0] = nil
	require.NotNil(t, channels[0])
}

func TestSortOnlineFirst_Stable(t *testing.T) {
	channels := sample()
	sorted := SortOnlineFirst(channels)

	assert.Equal(t, []string{"Cartoon", "Movies", "BBC News", "CNN"}, names(sorted))
	assert.Equal(t, "BBC News", channels[0].Name, "input order untouched")
	assert.Len(t, sorted, len(channels))
}

func TestHideOffline(t *testing.T) {
	assert.Equal(t, []string{"Cartoon", "CNN", "Movies"}, names(HideOffline(sample())))
}

func TestCounts(t *testing.T) {
	online, offline := Counts(sample())
	assert.Equal(t, 2, online)
	assert.Equal(t, 1, offline)
}

func TestByStatus(t *testing.T) {
	assert.Equal(t, []string{"CNN"}, names(ByStatus(sample(), models.StatusUnknown)))
}
