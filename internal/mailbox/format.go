package mailbox

import "time"

// TimestampLayout renders like a browser's en-US toLocaleString.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

// FormatAddress shortens an address to its first 6 and last 4 characters.
// Strings too short to shorten are returned unchanged.
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// FormatTimestamp renders unix seconds in the local time zone.
func FormatTimestamp(unix int64) string {
	return time.Unix(unix, 0).Local().Format(TimestampLayout)
}
