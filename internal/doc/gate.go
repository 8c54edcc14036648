package doc

import "fmt"

// Validate is the storage-level constraint gate. Every store write runs it,
// so no caller can persist a record that breaks the path or publication
// invariants.
//
// The path must parse canonically or match an exception pattern. When the
// path is canonical, explicit category and type fields must equal its
// segments.
func Validate(d *Document) error {
	if err := ValidatePath(d.FilePath, d.Category, d.DocumentType); err != nil {
		return err
	}
	if !d.Stage.Valid() {
		return fmt.Errorf("unknown lifecycle stage %q", d.Stage)
	}
	if d.Stage == StageRejected {
		return fmt.Errorf("rejected is transient and cannot be persisted")
	}
	if !d.Visibility.Valid() {
		return fmt.Errorf("unknown visibility %q", d.Visibility)
	}
	if d.EntityType == "" || d.EntityID == "" {
		return fmt.Errorf("document %s has no owning entity", d.ID)
	}
	if (d.Stage == StagePublished) != (d.PublishedPath != "") {
		return fmt.Errorf("document %s is %s with published path %q", d.ID, d.Stage, d.PublishedPath)
	}
	if (d.Stage == StageArchived) != (d.ArchivedFrom != "") {
		return fmt.Errorf("document %s is %s with archived-from %q", d.ID, d.Stage, d.ArchivedFrom)
	}
	return nil
}

// ValidatePath checks a path against the canonical layout and the explicit
// classifiers. Empty classifiers are not compared.
func ValidatePath(p string, category Category, docType DocumentType) error {
	parts, err := ParsePath(p)
	if err != nil {
		if IsExceptionPath(p) {
			return nil
		}
		return err
	}
	if category != "" && parts.Category != category {
		return &PathCategoryMismatch{Path: p, Field: "category", InPath: string(parts.Category), InRecord: string(category)}
	}
	if docType != "" && parts.DocumentType != docType {
		return &PathCategoryMismatch{Path: p, Field: "document_type", InPath: string(parts.DocumentType), InRecord: string(docType)}
	}
	return nil
}
