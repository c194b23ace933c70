package source

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	got, err := PageURL("https://www.jba.co.id/id/lelang-motor/search?vehicle_type=bike&keyword=", "page", 3)
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	require.Equal(t, "3", u.Query().Get("page"))
	require.Equal(t, "bike", u.Query().Get("vehicle_type"))

	_, err = PageURL("https://example.com", "page", 0)
	require.Error(t, err)
}
