package render

import "github.com/haneulsoft/reserve-notify/internal/model"

// SMSByteLimit is the provider's short-message threshold: rendered bodies
// at or under this many bytes go out as SMS, longer ones as LMS.
const SMSByteLimit = 90

// MessageBytes counts content the way the provider bills it: 1 byte for
// ASCII, 2 for two-byte code points, 3 for everything else (Hangul included).
func MessageBytes(content string) int {
	bytes := 0
	for _, r := range content {
		switch {
		case r <= 0x7f:
			bytes++
		case r <= 0x7ff:
			bytes += 2
		default:
			bytes += 3
		}
	}
	return bytes
}

// PickChannel selects the outbound channel for a rendered body. Attachments
// force MMS regardless of length.
func PickChannel(content string, attachmentCount int) model.Channel {
	if attachmentCount > 0 {
		return model.ChannelMMS
	}
	if MessageBytes(content) <= SMSByteLimit {
		return model.ChannelSMS
	}
	return model.ChannelLMS
}
