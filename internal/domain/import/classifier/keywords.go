package classifier

// Keyword dictionaries for undated-row classification, Portuguese and
// English. Matched as substrings of the lowercased row name via Aho-Corasick,
// variable-utility terms strictly before fixed-cost terms.

var variableKeywords = []string{
	// Portuguese
	"luz", "eletricidade", "electricidade", "agua", "água", "gas", "gás",
	"energia", "saneamento",
	// English
	"electric", "electricity", "water", "utility", "utilities", "energy",
	"power bill",
}

var fixedKeywords = []string{
	// Portuguese
	"renda", "seguro", "telemovel", "telemóvel", "telefone", "internet",
	"prestacao", "prestação", "assinatura", "subscricao", "subscrição",
	"mensalidade", "ginasio", "ginásio", "condominio", "condomínio",
	// English
	"rent", "insurance", "phone", "mobile", "subscription", "mortgage",
	"installment", "membership", "gym",
	// Common subscription merchants
	"netflix", "spotify", "hbo", "disney",
}
