package domain

// sameEntity reports whether an expected and a recognized entity denote the
// same entity: role, type and span must all be equal. Confidence is ignored.
func sameEntity(e ExpectedEntity, r RecognizedEntity) bool {
	return e.Role == r.Role && e.EntityType == r.EntityType && e.Span.Equal(r.Span)
}

// EntitiesDiffer reports whether the recognized entities differ from the
// expected ones. The sets differ when an expected entity has no recognized
// counterpart or a recognized entity has no expected counterpart.
//
// Both directions are plain existence scans, so the cost is O(E*A). Entity
// counts per expression are small enough that no index is worth building.
func EntitiesDiffer(expected []ExpectedEntity, actual []RecognizedEntity) bool {
	for _, e := range expected {
		if !containsRecognized(actual, e) {
			return true
		}
	}
	for _, r := range actual {
		if !containsExpected(expected, r) {
			return true
		}
	}
	return false
}

func containsRecognized(actual []RecognizedEntity, e ExpectedEntity) bool {
	for _, r := range actual {
		if sameEntity(e, r) {
			return true
		}
	}
	return false
}

func containsExpected(expected []ExpectedEntity, r RecognizedEntity) bool {
	for _, e := range expected {
		if sameEntity(e, r) {
			return true
		}
	}
	return false
}
