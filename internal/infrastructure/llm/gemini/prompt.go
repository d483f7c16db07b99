package gemini

const cardPrompt = `
Analyze this business card image and extract the following information
in JSON format.

Instructions:
1. Be strict: only extract what is clearly visible or inferred from a QR code.
2. If a field is missing, return null. DO NOT use placeholders like "N/A" or "Unknown".
3. Check for a QR code. If one is present and visually decodable as a URL or vCard, use its content to fill in missing details (e.g., website, email, phone).
4. If a URL is found (text or QR), prioritize it for the 'website' field.

Required JSON structure:
{
  "name": "string or null",
  "company": "string or null",
  "phone": ["string array of phone numbers"],
  "email": ["string array of emails"],
  "website": "string or null",
  "description": "string (what company does, or person's role)",
  "tags": ["array of 2-4 relevant category tags"]
}

Return ONLY valid JSON.
`

const checkPrompt = "Hello"

func buildExtractionRequest(imageBase64, mimeType string) map[string]any {
	return map[string]any{
		"contents": []any{
			map[string]any{
				"parts": []any{
					map[string]any{"text": cardPrompt},
					map[string]any{"inline_data": map[string]any{
						"mime_type": mimeType,
						"data":      imageBase64,
					}},
				},
			},
		},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   extractionSchema(),
		},
	}
}

func buildCheckRequest() map[string]any {
	return map[string]any{
		"contents": []any{
			map[string]any{"parts": []any{map[string]any{"text": checkPrompt}}},
		},
	}
}

func extractionSchema() map[string]any {
	nullableString := map[string]any{"type": "STRING", "nullable": true}
	nullableList := map[string]any{
		"type":     "ARRAY",
		"items":    map[string]any{"type": "STRING"},
		"nullable": true,
	}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"name":        nullableString,
			"company":     nullableString,
			"phone":       nullableList,
			"email":       nullableList,
			"website":     nullableString,
			"description": nullableString,
			"tags":        nullableList,
		},
		"required": []string{"name", "company", "tags"},
	}
}
