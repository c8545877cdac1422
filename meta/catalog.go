package meta

// Catalog is a snapshot of the metadata of a reporting domain, as read
// from a seed file.
type Catalog struct {
	Functions        []*Function        `yaml:"functions"`
	Columns          []*Column          `yaml:"columns"`
	CalculatedFields []*CalculatedField `yaml:"calculatedFields,omitempty"`
}

// CalculatedFieldByID returns the calculated field with the given id or
// nil.
func (c *Catalog) CalculatedFieldByID(id int) *CalculatedField {
	for _, f := range c.CalculatedFields {
		if f.ID == id {
			return f
		}
	}
	return nil
}
