package render_test

import (
	"strings"
	"testing"

	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/render"
)

func TestMessageBytes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 0},
		{"ascii", "hello", 5},
		{"hangul three bytes each", "안녕", 6},
		{"mixed", "hi 안녕", 9},
		{"two byte code point", "é", 2},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := render.MessageBytes(tc.content); got != tc.want {
				t.Fatalf("expected %d bytes, got %d", tc.want, got)
			}
		})
	}
}

func TestPickChannel(t *testing.T) {
	t.Parallel()

	t.Run("short body is SMS", func(t *testing.T) {
		t.Parallel()
		if got := render.PickChannel("예약 확인", 0); got != model.ChannelSMS {
			t.Fatalf("expected SMS, got %s", got)
		}
	})

	t.Run("exactly at the limit is SMS", func(t *testing.T) {
		t.Parallel()
		// 30 Hangul syllables = 90 bytes.
		body := strings.Repeat("가", 30)
		if got := render.PickChannel(body, 0); got != model.ChannelSMS {
			t.Fatalf("expected SMS at %d bytes, got %s", render.MessageBytes(body), got)
		}
	})

	t.Run("one byte over the limit is LMS", func(t *testing.T) {
		t.Parallel()
		body := strings.Repeat("가", 30) + "."
		if got := render.PickChannel(body, 0); got != model.ChannelLMS {
			t.Fatalf("expected LMS at %d bytes, got %s", render.MessageBytes(body), got)
		}
	})

	t.Run("attachments force MMS", func(t *testing.T) {
		t.Parallel()
		if got := render.PickChannel("짧음", 1); got != model.ChannelMMS {
			t.Fatalf("expected MMS, got %s", got)
		}
	})
}
