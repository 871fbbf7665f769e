package llm

import (
	"encoding/json"
	"strings"
)

// BuildQueryTranslationPrompt constructs the prompts that translate a search
// query into English for PubMed.
func BuildQueryTranslationPrompt(query string) (systemPrompt, userPrompt string) {
	systemPrompt = "You are a helpful assistant that translates medical search queries to English " +
		"for PubMed database searches. Return ONLY the English translation, no other text or explanation."

	var sb strings.Builder
	sb.WriteString("Translate the following medical search query into English for a PubMed database search. ")
	sb.WriteString("If the query is already in English, return it exactly as is. ")
	sb.WriteString("Return ONLY the English translation, no other text or explanation.\n\n")
	sb.WriteString("Query: \"")
	sb.WriteString(query)
	sb.WriteString("\"")

	return systemPrompt, sb.String()
}

// BuildTitleTranslationPrompt constructs the prompts that translate a single
// article title into Russian.
func BuildTitleTranslationPrompt(title string) (systemPrompt, userPrompt string) {
	systemPrompt = "You are a helpful assistant that translates medical article titles from English to Russian. " +
		"Return ONLY the Russian translation, no other text."
	userPrompt = "Translate this medical article title from English to Russian. Return ONLY the translation:\n\n" + title
	return systemPrompt, userPrompt
}

// BuildBatchTitleTranslationPrompt constructs the prompts that translate a
// batch of titles in one call. The model must answer with a JSON array of
// strings in input order.
func BuildBatchTitleTranslationPrompt(titles []string) (systemPrompt, userPrompt string) {
	systemPrompt = "You are a helpful assistant that translates medical article titles from English to Russian."

	// Marshalling a []string cannot fail.
	input, _ := json.Marshal(titles)

	var sb strings.Builder
	sb.WriteString("Translate the following medical article titles from English to Russian.\n")
	sb.WriteString("Return ONLY a JSON array of strings corresponding to the order of the input.\n")
	sb.WriteString("Input: ")
	sb.Write(input)

	return systemPrompt, sb.String()
}

// BuildSummaryPrompt constructs the prompts that explain an article to a
// non-specialist reader in Russian.
func BuildSummaryPrompt(title, abstract string) (systemPrompt, userPrompt string) {
	systemPrompt = "You are a helpful medical assistant. Your task is to explain medical scientific articles " +
		"to simple people (non-medical experts) in Russian. Use simple, clear language. " +
		"Focus on the main conclusion. Be concise but informative."

	var sb strings.Builder
	sb.WriteString("You are a helpful medical assistant. Your task is to explain the following medical ")
	sb.WriteString("scientific article to a simple person (non-medical expert) in Russian.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. **Output Language**: Russian (Русский).\n")
	sb.WriteString("2. Use simple, clear language. Avoid complex terminology where possible, or explain it.\n")
	sb.WriteString("3. Focus on the main conclusion: What did they find? Why is it important?\n")
	sb.WriteString("4. Structure the response with clear paragraphs or bullet points.\n")
	sb.WriteString("5. Be concise but informative.\n")
	sb.WriteString("6. Do not make up facts. Stick to the abstract provided.\n\n")
	sb.WriteString("Article Title: ")
	sb.WriteString(title)
	sb.WriteString("\nAbstract: ")
	sb.WriteString(abstract)

	return systemPrompt, sb.String()
}

// BuildOptimizePrompt constructs the prompts that compress a long query into
// concise PubMed search terms.
func BuildOptimizePrompt(query string) (systemPrompt, userPrompt string) {
	systemPrompt = "You are a medical research assistant. Your task is to optimize long, detailed queries " +
		"into concise PubMed search terms. Focus on the core medical concepts, diseases, treatments, " +
		"and key terms that would yield the best search results."

	var sb strings.Builder
	sb.WriteString("Please optimize this medical query for PubMed search. Extract the key medical terms, ")
	sb.WriteString("diseases, treatments, and concepts. Make it concise but comprehensive.\n\n")
	sb.WriteString("Original query: \"")
	sb.WriteString(query)
	sb.WriteString("\"\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Focus on medical keywords, diseases, treatments, symptoms, and research topics\n")
	sb.WriteString("2. Use PubMed-compatible syntax when appropriate (AND, OR, NOT)\n")
	sb.WriteString("3. Keep it under 200 characters if possible\n")
	sb.WriteString("4. Return ONLY the optimized search query, no explanations")

	return systemPrompt, sb.String()
}
