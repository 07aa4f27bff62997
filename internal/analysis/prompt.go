package analysis

import (
	"encoding/json"
	"fmt"

	"eve_analyst/internal/event"
)

const systemPrompt = "You are a cybersecurity analyst specializing in network security, threat detection, and Suricata logs."

const userPromptTmpl = `Analyze the following Suricata event involving at least one public IP address and provide a brief security assessment:
%s

Consider the following in your analysis:
1. Is there any suspicious activity related to the public IP(s)?
2. What is the nature of the communication (e.g., incoming connection, outgoing connection)?
3. Are there any potential security risks or indicators of compromise?
4. What recommendations would you make for further investigation or action?
`

func userPrompt(ev event.Normalized) (string, error) {
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding event: %w", err)
	}
	return fmt.Sprintf(userPromptTmpl, data), nil
}
