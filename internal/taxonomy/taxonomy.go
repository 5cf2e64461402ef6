// Package taxonomy holds the closed set of memory categories and the static tables built on it:
// query expansion, synonym normalization, keyword inference and conflict policy.
//
// Everything here is pure data. No function keeps state between calls.
package taxonomy

import (
	"regexp"
	"strings"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// Categories.
const (
	Name         model.Category = "name"
	Location     model.Category = "location"
	Profession   model.Category = "profession"
	Age          model.Category = "age"
	Nationality  model.Category = "nationality"
	Language     model.Category = "language"
	Family       model.Category = "family"
	Colleague    model.Category = "colleague"
	Friend       model.Category = "friend"
	Relationship model.Category = "relationship"
	Preference   model.Category = "preference"
	Hobby        model.Category = "hobby"
	Interest     model.Category = "interest"
	Goal         model.Category = "goal"
	Education    model.Category = "education"
	Studies      model.Category = "studies"
	Skills       model.Category = "skills"
	Emotion      model.Category = "emotion"
	Behavior     model.Category = "behavior"
	General      model.Category = "general"
	System       model.Category = "system"
	Document     model.Category = "document"
	Canvas       model.Category = "canvas"
	Course       model.Category = "course"
)

var all = map[model.Category]bool{
	Name: true, Location: true, Profession: true, Age: true, Nationality: true, Language: true,
	Family: true, Colleague: true, Friend: true, Relationship: true,
	Preference: true, Hobby: true, Interest: true, Goal: true,
	Education: true, Studies: true, Skills: true, Emotion: true, Behavior: true,
	General: true, System: true, Document: true, Canvas: true, Course: true,
}

// IsValid reports whether c is a taxonomy member.
func IsValid(c model.Category) bool { return all[c] }

// identity categories always get the identity boost.
var identity = map[model.Category]bool{
	Name: true, Location: true, Profession: true, Studies: true, Skills: true,
}

// IsIdentity reports whether c belongs to the core-identity set.
func IsIdentity(c model.Category) bool { return identity[c] }

var replaceOnConflict = map[model.Category]bool{
	Name: true, Location: true, Profession: true, Age: true, Nationality: true, Language: true,
}

// ReplacesOnConflict reports whether a new fact in c retires older ones instead of accumulating.
func ReplacesOnConflict(c model.Category) bool { return replaceOnConflict[c] }

// IsPersonal reports whether records of c may appear in personal-memory results.
func IsPersonal(c model.Category) bool {
	switch c {
	case Document, Canvas, System:
		return false
	}
	return true
}

// singleValued categories own one canonical key per user.
var singleValued = map[model.Category]string{
	Name:        "user_name",
	Location:    "user_location",
	Profession:  "user_profession",
	Age:         "user_age",
	Nationality: "user_nationality",
	Language:    "user_language",
}

// CanonicalKey returns the fixed key of a single-valued category.
func CanonicalKey(c model.Category) (string, bool) {
	k, ok := singleValued[c]
	return k, ok
}

// ProtectedKeys are never overwritten by background extraction.
var ProtectedKeys = map[string]bool{
	"user_name": true,
}

// IsIdentityKey reports whether key names a core-identity fact.
func IsIdentityKey(key string) bool {
	for c, k := range singleValued {
		if k == key && identity[c] {
			return true
		}
	}
	return false
}

var expansion = map[model.Category][]model.Category{
	Name:         {Name, General},
	Profession:   {Profession, Education, Skills},
	Education:    {Education, Studies, Profession},
	Studies:      {Studies, Education, Skills},
	Skills:       {Skills, Profession, Studies},
	Hobby:        {Hobby, Interest, Preference},
	Interest:     {Interest, Hobby},
	Preference:   {Preference, Hobby, Interest},
	Family:       {Family, Relationship},
	Relationship: {Relationship, Family, Friend},
	Friend:       {Friend, Relationship},
	Colleague:    {Colleague, Profession},
	Goal:         {Goal, Profession, Education},
	Location:     {Location, Nationality},
	Nationality:  {Nationality, Location, Language},
	Emotion:      {Emotion, Behavior},
}

// Expand returns c followed by its adjacent categories.
func Expand(c model.Category) []model.Category {
	if e, ok := expansion[c]; ok {
		out := make([]model.Category, len(e))
		copy(out, e)
		return out
	}
	return []model.Category{c}
}

var synonyms = map[string]model.Category{
	"name": Name, "nickname": Name,
	"location": Location, "city": Location, "country": Location, "hometown": Location, "home": Location, "address": Location,
	"profession": Profession, "job": Profession, "occupation": Profession, "career": Profession, "work": Profession, "role": Profession,
	"age": Age, "birthday": Age,
	"nationality": Nationality, "citizenship": Nationality,
	"language": Language, "tongue": Language,
	"family": Family, "mother": Family, "mom": Family, "father": Family, "dad": Family, "parent": Family,
	"brother": Family, "sister": Family, "sibling": Family, "son": Family, "daughter": Family, "child": Family,
	"children": Family, "kid": Family, "uncle": Family, "aunt": Family, "cousin": Family, "nephew": Family,
	"niece": Family, "grandmother": Family, "grandma": Family, "grandfather": Family, "grandpa": Family,
	"wife": Family, "husband": Family, "spouse": Family,
	"colleague": Colleague, "coworker": Colleague, "co-worker": Colleague, "boss": Colleague,
	"manager": Colleague, "teammate": Colleague,
	"friend": Friend, "buddy": Friend, "bestie": Friend,
	"relationship": Relationship, "partner": Relationship, "girlfriend": Relationship, "boyfriend": Relationship,
	"fiance": Relationship, "fiancee": Relationship,
	"preference": Preference, "favorite": Preference, "favourite": Preference, "like": Preference, "dislike": Preference,
	"hobby": Hobby, "pastime": Hobby,
	"interest": Interest,
	"goal": Goal, "dream": Goal, "plan": Goal, "ambition": Goal,
	"education": Education, "school": Education, "university": Education, "college": Education, "degree": Education,
	"studies": Studies, "study": Studies, "major": Studies, "subject": Studies,
	"skills": Skills, "skill": Skills, "expertise": Skills,
	"emotion": Emotion, "feeling": Emotion, "mood": Emotion,
	"behavior": Behavior, "behaviour": Behavior, "habit": Behavior, "routine": Behavior,
	"general": General,
	"document": Document, "canvas": Canvas, "course": Course, "lesson": Course, "system": System,
}

// Normalize maps a word (singular or plural) onto a category. Unknown words map to General.
func Normalize(word string) model.Category {
	w := strings.ToLower(strings.TrimSpace(word))
	if c, ok := synonyms[w]; ok {
		return c
	}
	for _, s := range singularForms(w) {
		if c, ok := synonyms[s]; ok {
			return c
		}
	}
	return General
}

var people = map[model.Category]bool{
	Family: true, Colleague: true, Friend: true, Relationship: true,
}

// NamesCategory reports whether word stands for a whole category. Relation words such as
// "uncle" or "boss" map to a people category but name one member of it, so they do not.
func NamesCategory(word string) bool {
	w := strings.ToLower(strings.TrimSpace(word))
	c := Normalize(w)
	if c == General {
		return false
	}
	if !people[c] || w == string(c) {
		return true
	}
	for _, s := range singularForms(w) {
		if s == string(c) {
			return true
		}
	}
	return false
}

func singularForms(w string) []string {
	var out []string
	if strings.HasSuffix(w, "ies") && len(w) > 3 {
		out = append(out, w[:len(w)-3]+"y")
	}
	if strings.HasSuffix(w, "es") && len(w) > 2 {
		out = append(out, w[:len(w)-2])
	}
	if strings.HasSuffix(w, "s") && len(w) > 1 {
		out = append(out, w[:len(w)-1])
	}
	return out
}

type keywordRule struct {
	category model.Category
	pattern  *regexp.Regexp
}

// keywordRules are evaluated in order; the first match wins.
var keywordRules = []keywordRule{
	{Name, regexp.MustCompile(`(?i)\b(my name|call me|i'?m called|named|name)\b`)},
	{Age, regexp.MustCompile(`(?i)\b(years old|my age|how old|birthday|born in)\b`)},
	{Nationality, regexp.MustCompile(`(?i)\b(nationality|citizen|citizenship)\b`)},
	{Language, regexp.MustCompile(`(?i)\b(speak|speaks|language|languages|native tongue)\b`)},
	{Location, regexp.MustCompile(`(?i)\b(live|lives|living|moved to|based in|hometown|city|country|i'?m from|i am from|where i'?m from)\b`)},
	{Profession, regexp.MustCompile(`(?i)\b(work as|work at|job|profession|occupation|career|engineer|developer|teacher|doctor|nurse|designer|manager at)\b`)},
	{Studies, regexp.MustCompile(`(?i)\b(study|studying|studies|major in|majoring)\b`)},
	{Education, regexp.MustCompile(`(?i)\b(school|university|college|degree|graduated|phd|bachelor|master'?s)\b`)},
	{Skills, regexp.MustCompile(`(?i)\b(skill|skills|good at|proficient|expert in|fluent in)\b`)},
	{Family, regexp.MustCompile(`(?i)\b(family|mother|mom|father|dad|parents?|brother|sister|siblings?|son|daughter|kids?|children|uncles?|aunts?|cousins?|grandma|grandpa|grandmother|grandfather|wife|husband)\b`)},
	{Colleague, regexp.MustCompile(`(?i)\b(colleagues?|coworkers?|co-workers?|boss|teammates?)\b`)},
	{Friend, regexp.MustCompile(`(?i)\b(friends?|buddy|bestie)\b`)},
	{Relationship, regexp.MustCompile(`(?i)\b(partner|girlfriend|boyfriend|fianc[eé]e?|dating)\b`)},
	{Goal, regexp.MustCompile(`(?i)\b(goal|goals|want to become|dream of|planning to|hope to|aspire)\b`)},
	{Hobby, regexp.MustCompile(`(?i)\b(hobby|hobbies|free time|spare time|for fun)\b`)},
	{Interest, regexp.MustCompile(`(?i)\b(interested in|fascinated by|curious about|into)\b`)},
	{Preference, regexp.MustCompile(`(?i)\b(like|likes|love|loves|prefer|prefers|favou?rite|hate|dislike|enjoy)\b`)},
	{Emotion, regexp.MustCompile(`(?i)\b(feel|feeling|sad|happy|anxious|stressed|excited|worried|lonely|angry)\b`)},
	{Behavior, regexp.MustCompile(`(?i)\b(usually|always|every day|every morning|habit|routine)\b`)},
}

// InferFromContent infers a category from free text using the keyword table.
func InferFromContent(text string) (model.Category, bool) {
	for _, r := range keywordRules {
		if r.pattern.MatchString(text) {
			return r.category, true
		}
	}
	return "", false
}

// Coarse extraction types emitted by upstream extractors.
const (
	CoarsePersonal     = "personal"
	CoarseRelational   = "relational"
	CoarsePreference   = "preference"
	CoarseProfessional = "professional"
	CoarseEmotional    = "emotional"
	CoarseBehavioral   = "behavioral"
	CoarseFactual      = "factual"
)

var coarse = map[string]model.Category{
	CoarsePersonal:     General,
	CoarseRelational:   Relationship,
	CoarsePreference:   Preference,
	CoarseProfessional: Profession,
	CoarseEmotional:    Emotion,
	CoarseBehavioral:   Behavior,
	CoarseFactual:      General,
}

// FromCoarseType maps a coarse extraction type to a category.
func FromCoarseType(t string) (model.Category, bool) {
	c, ok := coarse[strings.ToLower(strings.TrimSpace(t))]
	return c, ok
}

// Resolve picks a category for an ambiguous candidate: a valid raw category first, then
// keyword inference on the content, then the coarse type, then General.
func Resolve(raw, content, coarseType string) model.Category {
	c := model.Category(strings.ToLower(strings.TrimSpace(raw)))
	if IsValid(c) {
		return c
	}
	if c, ok := InferFromContent(content); ok {
		return c
	}
	if c, ok := FromCoarseType(coarseType); ok {
		return c
	}
	return General
}
