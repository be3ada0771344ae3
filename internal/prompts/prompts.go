// Package prompts builds the instruction text sent to the generation backend
// for each pipeline stage.
package prompts

import (
	"fmt"
	"strings"
)

const summaryTemplate = `You are an expert content summarizer. Summarize the following article into a 3-4 sentence summary and 3 concise bullet points.

Article:
%s

Please return your response in the following JSON format:
{
    "summary": "Your 3-4 sentence summary here",
    "bullets": [
        "First key point",
        "Second key point",
        "Third key point"
    ]
}`

const variantsTemplate = `You are a professional social media content writer. Use the summary and bullet points to create two post variants A and B.

Context:
- Summary: %s
- Key Points: %s
- User Opinion: %s
- Tone: %s

Requirements for each variant:
- Text: Maximum 1300 characters, engaging and thought-provoking
- Hashtags: Exactly 3 relevant hashtags
- Suggested Comment: One line to encourage engagement
- Alt Text: Maximum 125 characters describing the image

Return your response in this exact JSON format:
{
    "A": {
        "text": "Post text for variant A",
        "hashtags": ["#tag1", "#tag2", "#tag3"],
        "suggested_comment": "Suggested comment for variant A",
        "alt_text": "Alt text for variant A image"
    },
    "B": {
        "text": "Post text for variant B",
        "hashtags": ["#tag1", "#tag2", "#tag3"],
        "suggested_comment": "Suggested comment for variant B",
        "alt_text": "Alt text for variant B image"
    }
}`

const imagePromptTemplate = `Create a detailed, professional image prompt for an AI image generator that will create a social post image.

Post Content: %s
Style: %s
Negative Prompts: %s

Your prompt should:
- Be descriptive and specific
- Match a professional tone
- Include visual elements that complement the post content
- Specify the style (photographic, illustrated, flat, abstract)
- Avoid any text, logos, or watermarks
- Be suitable for business/professional audiences

Return only the image prompt text, no additional formatting.`

const moderationTemplate = `You are a content moderator ensuring generated content meets professional standards. Review the following post content for appropriateness and compliance:

Post Text: %s
Hashtags: %s
Suggested Comment: %s

Check for:
1. Professional tone and language
2. Factual accuracy
3. Compliance with platform policies
4. Appropriate hashtag usage
5. Engagement without controversy

Return your assessment in this JSON format:
{
    "status": "pass|review|reject",
    "notes": ["List any concerns or recommendations"],
    "confidence": "high|medium|low"
}`

// Summary builds the summarize-stage prompt. Article text is expected to be
// pre-truncated by the caller.
func Summary(articleText string) string {
	return fmt.Sprintf(summaryTemplate, articleText)
}

// Variants builds the draft-variants prompt. A non-empty locale asks the model
// to write in that language.
func Variants(summary string, bullets []string, opinion, tone, locale string) string {
	prompt := fmt.Sprintf(variantsTemplate, summary, strings.Join(bullets, ", "), opinion, tone)
	if locale != "" && locale != "en" {
		prompt += fmt.Sprintf("\n\nWrite the post text in the language with code %q.", locale)
	}
	return prompt
}

// ImagePrompt builds the prompt that asks the text port for an image prompt.
func ImagePrompt(postText, style, negativePrompt string) string {
	return fmt.Sprintf(imagePromptTemplate, postText, style, negativePrompt)
}

// Moderation builds the per-variant moderation prompt.
func Moderation(postText string, hashtags []string, suggestedComment string) string {
	return fmt.Sprintf(moderationTemplate, postText, strings.Join(hashtags, ", "), suggestedComment)
}
