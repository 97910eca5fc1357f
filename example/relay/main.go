// Command relay sends a few test emails through the chainmail SMTP relay.
// Start chainmail with SMTP_RELAY_ENABLED=true and a wallet configured.
package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:2025", "relay address")
	to := flag.String("to", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "recipient account")
	domain := flag.String("domain", "chainmail", "relay domain")
	user := flag.String("user", "chainmail", "smtp username")
	pass := flag.String("pass", "chainmail", "smtp password")
	count := flag.Int("n", 3, "number of messages")
	flag.Parse()

	from := "sender@example.com"
	rcpt := *to + "@" + *domain
	auth := sasl.NewPlainClient("", *user, *pass)

	for i := 1; i <= *count; i++ {
		subject := fmt.Sprintf("chainmail relay example #%d", i)
		body := fmt.Sprintf("Hello from the relay. Message %d.\r\n", i)
		message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, rcpt, subject, body)

		if err := smtp.SendMail(*addr, auth, from, []string{rcpt}, strings.NewReader(message)); err != nil {
			panic(err)
		}
	}

	fmt.Printf("sent %d messages\n", *count)
}
