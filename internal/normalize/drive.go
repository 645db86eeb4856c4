package normalize

import (
	drive "google.golang.org/api/drive/v3"
)

// DriveFile maps a drive.File response to fileName/fileID/fileMimeType.
func DriveFile(resp *Response) (map[string]any, map[string]any, error) {
	var f drive.File
	if err := Decode(resp, &f); err != nil {
		return nil, nil, err
	}
	return FileResult(&f), FileDiagnostics(&f), nil
}

// FileResult is the payload shape shared by every single-file operation.
func FileResult(f *drive.File) map[string]any {
	return map[string]any{
		"fileName":     f.Name,
		"fileID":       f.Id,
		"fileMimeType": f.MimeType,
	}
}

// FileDiagnostics is the response bucket shared by single-file operations.
func FileDiagnostics(f *drive.File) map[string]any {
	return map[string]any{
		"Name":      f.Name,
		"ID":        f.Id,
		"MIME Type": f.MimeType,
	}
}

// DriveFileList maps one page of a files.list response. The page token, if
// any, is returned under "nextPageToken" for the paginator.
func DriveFileList(resp *Response) (map[string]any, map[string]any, error) {
	var list drive.FileList
	if err := Decode(resp, &list); err != nil {
		return nil, nil, err
	}
	files := make([]map[string]any, 0, len(list.Files))
	for _, f := range list.Files {
		if f == nil {
			continue
		}
		files = append(files, FileResult(f))
	}
	payload := map[string]any{"files": files}
	if list.NextPageToken != "" {
		payload["nextPageToken"] = list.NextPageToken
	}
	return payload, map[string]any{"Number of files": len(files)}, nil
}

// DriveMetadata maps a files.get metadata response to the download
// diagnostics keys.
func DriveMetadata(resp *Response) (map[string]any, map[string]any, error) {
	var f drive.File
	if err := Decode(resp, &f); err != nil {
		return nil, nil, err
	}
	payload := FileResult(&f)
	payload["fileDescription"] = f.Description
	return payload, map[string]any{
		"File Name":        f.Name,
		"File Type":        f.MimeType,
		"File Description": f.Description,
	}, nil
}
