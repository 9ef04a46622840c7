package permissions

// PermissionDefinition describes a single, specific permission
type PermissionDefinition struct {
	Key         string `json:"key"`         // unique key, e.g., "album.create"
	Name        string `json:"name"`        // friendly name, e.g., "Create Album"
	Description string `json:"description"` // detailed description of what the permission allows
}

// PermissionGroupDefinition groups related permissions
type PermissionGroupDefinition struct {
	Key         string                 `json:"key"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Permissions []PermissionDefinition `json:"permissions"`
}

const (
	AlbumCreate = "album.create"
	AlbumEdit   = "album.edit"
	AlbumDelete = "album.delete"
	AlbumExport = "album.export"
	ImageEdit   = "image.edit"
	ImageDelete = "image.delete"
	UploadZip   = "upload.create"
	UserManage  = "user.manage"
)

// DefinedPermissionGroups holds all statically defined permission groups and their permissions
var DefinedPermissionGroups = []PermissionGroupDefinition{
	{
		Key:         "album",
		Name:        "Album Management",
		Description: "Permissions related to creating and maintaining albums.",
		Permissions: []PermissionDefinition{
			{Key: AlbumCreate, Name: "Create Album", Description: "Allows creating new albums."},
			{Key: AlbumEdit, Name: "Edit Album", Description: "Allows renaming albums and changing visibility, order and slug."},
			{Key: AlbumDelete, Name: "Delete Album", Description: "Allows deleting an album together with its images."},
			{Key: AlbumExport, Name: "Export Album", Description: "Allows downloading an album as a zip archive."},
		},
	},
	{
		Key:         "image",
		Name:        "Image Management",
		Description: "Permissions related to editing stored images.",
		Permissions: []PermissionDefinition{
			{Key: ImageEdit, Name: "Edit Image", Description: "Allows editing titles, tags, flags and relations of images."},
			{Key: ImageDelete, Name: "Delete Image", Description: "Allows deleting images and their stored payloads."},
		},
	},
	{
		Key:         "upload",
		Name:        "Bulk Upload",
		Description: "Permissions related to zip imports.",
		Permissions: []PermissionDefinition{
			{Key: UploadZip, Name: "Import Zip Archive", Description: "Allows importing a zip archive of images into a new or existing album."},
		},
	},
	{
		Key:         "user",
		Name:        "User Management",
		Description: "Permissions related to administrator accounts.",
		Permissions: []PermissionDefinition{
			{Key: UserManage, Name: "Manage Users", Description: "Allows creating, editing and deleting users and their permissions."},
		},
	},
}

var (
	allPermissionKeysMap map[string]PermissionDefinition
	allPermissionKeys    []string
)

func init() {
	allPermissionKeysMap = make(map[string]PermissionDefinition)
	for _, group := range DefinedPermissionGroups {
		for _, perm := range group.Permissions {
			allPermissionKeysMap[perm.Key] = perm
			allPermissionKeys = append(allPermissionKeys, perm.Key)
		}
	}
}

// GetAllPermissionKeys returns a slice of all unique permission string keys
func GetAllPermissionKeys() []string {
	// return a copy to prevent modification of the internal slice
	keys := make([]string, len(allPermissionKeys))
	copy(keys, allPermissionKeys)
	return keys
}

// IsValidPermissionKey checks if a given permission key is defined
func IsValidPermissionKey(key string) bool {
	_, ok := allPermissionKeysMap[key]
	return ok
}
