package callbacks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
	"pgregory.net/rapid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unique := rapid.StringMatching(`[a-z][a-z0-9_]{0,15}`).Draw(t, "unique")
		payload := rapid.StringMatching(`[a-z0-9|:_-]{0,24}`).Draw(t, "payload")

		gotUnique, gotPayload, ok := Decode(Encode(unique, payload))
		if !ok {
			t.Fatalf("Decode rejected encoded data for %q", unique)
		}
		if gotUnique != unique || gotPayload != payload {
			t.Fatalf("round trip = (%q, %q), want (%q, %q)", gotUnique, gotPayload, unique, payload)
		}
	})
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, data := range []string{"", "out|audio", "\\fout|audio", "\f", "\f|audio", "\f  |video"} {
		_, _, ok := Decode(data)
		assert.Falsef(t, ok, "data %q", data)
	}
}

func TestDecodeArbitraryDataNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.String().Draw(t, "data")
		unique, _, ok := Decode(data)
		if ok && (unique == "" || !strings.HasPrefix(data, "\f")) {
			t.Fatalf("accepted %q with unique %q", data, unique)
		}
	})
}

func TestParseCallbackData(t *testing.T) {
	unique, payload := ParseCallbackData(&tele.Callback{Data: "\fout|video"})
	require.Equal(t, "out", unique)
	assert.Equal(t, "video", payload)

	unique, payload = ParseCallbackData(&tele.Callback{Unique: "out", Data: "audio"})
	assert.Equal(t, "out", unique)
	assert.Equal(t, "audio", payload)

	unique, payload = ParseCallbackData(&tele.Callback{Data: "legacy"})
	assert.Empty(t, unique)
	assert.Equal(t, "legacy", payload)

	unique, payload = ParseCallbackData(nil)
	assert.Empty(t, unique)
	assert.Empty(t, payload)
}
